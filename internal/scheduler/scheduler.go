package scheduler

import (
	"context"
	"strconv"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/openboard/modkit/internal/db"
	"github.com/openboard/modkit/internal/observability"
)

const (
	KindDeleteThread  = "delete_thread"
	KindDeleteComment = "delete_comment"
	KindLiftBan       = "lift_ban"
)

// Scheduler registers deferred units of work to be executed at or after a
// future instant. Execution is at-least-once; handlers must tolerate targets
// that no longer exist.
type Scheduler interface {
	ScheduleDeletion(ctx context.Context, kind db.PostKind, id int64, fireAt time.Time) error
	ScheduleBanExpiry(ctx context.Context, userName string, fireAt time.Time) error
	// Durable reports whether scheduled work survives a process restart.
	// Callers fall back to immediate action when it does not.
	Durable() bool
}

type JobStore interface {
	InsertJob(ctx context.Context, job *db.Job) error
}

type durableScheduler struct {
	store JobStore
	clock func() time.Time
}

func NewDurableScheduler(store JobStore) *durableScheduler {
	return &durableScheduler{store: store, clock: time.Now}
}

func (s *durableScheduler) ScheduleDeletion(ctx context.Context, kind db.PostKind, id int64, fireAt time.Time) error {
	jobKind := KindDeleteThread
	if kind == db.PostKindComment {
		jobKind = KindDeleteComment
	}
	return s.schedule(ctx, jobKind, strconv.FormatInt(id, 10), fireAt)
}

func (s *durableScheduler) ScheduleBanExpiry(ctx context.Context, userName string, fireAt time.Time) error {
	return s.schedule(ctx, KindLiftBan, userName, fireAt)
}

func (s *durableScheduler) Durable() bool {
	return true
}

func (s *durableScheduler) schedule(ctx context.Context, kind, argument string, fireAt time.Time) error {
	job := &db.Job{
		ID:        uuid.New(),
		Kind:      kind,
		Argument:  argument,
		FireAt:    fireAt.UTC(),
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.InsertJob(ctx, job); err != nil {
		return errors.Wrap(err, "persist job")
	}
	observability.RecordScheduledJob(kind)
	log.WithFields(log.Fields{
		"job_id":   job.ID,
		"kind":     kind,
		"argument": argument,
		"fire_at":  job.FireAt,
	}).Debug("scheduled job")
	return nil
}

// noopScheduler is the degraded-mode fallback used when durable scheduling
// infrastructure is disabled. It performs no scheduling and only logs.
type noopScheduler struct{}

func NewNoopScheduler() *noopScheduler {
	return &noopScheduler{}
}

func (s *noopScheduler) ScheduleDeletion(ctx context.Context, kind db.PostKind, id int64, fireAt time.Time) error {
	_ = ctx
	log.WithFields(log.Fields{
		"kind":    kind,
		"post_id": id,
		"fire_at": fireAt,
	}).Warn("durable scheduling disabled, deferred deletion will not run")
	return nil
}

func (s *noopScheduler) ScheduleBanExpiry(ctx context.Context, userName string, fireAt time.Time) error {
	_ = ctx
	log.WithFields(log.Fields{
		"user_name": userName,
		"fire_at":   fireAt,
	}).Warn("durable scheduling disabled, ban expiry will not run")
	return nil
}

func (s *noopScheduler) Durable() bool {
	return false
}
