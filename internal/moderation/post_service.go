package moderation

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/openboard/modkit/internal/db"
	"github.com/openboard/modkit/internal/event"
	"github.com/openboard/modkit/internal/observability"
	"github.com/openboard/modkit/internal/scheduler"
)

// CensorPlaceholder replaces every textual field of a forcibly deleted post.
const CensorPlaceholder = "[removed by moderator]"

type postStore interface {
	GetThread(ctx context.Context, id int64) (*db.Thread, error)
	DeleteThread(ctx context.Context, id int64) (bool, error)
	CensorThread(ctx context.Context, id int64, placeholder string, actionAt time.Time) error
	GetComment(ctx context.Context, id int64) (*db.Comment, error)
	DeleteComment(ctx context.Context, id int64) (bool, error)
	CensorComment(ctx context.Context, id int64, placeholder string, actionAt time.Time) error
	CreateReportTicket(ctx context.Context, ticket *db.ReportTicket) (*db.ReportTicket, error)
	GetReportTicket(ctx context.Context, id int64) (*db.ReportTicket, error)
	DeleteReportTicket(ctx context.Context, id int64) (bool, error)
}

type postPolicy interface {
	CanReportPost(ctx context.Context, userName, authorUserName string) (bool, error)
	CanReviewReportedPosts(ctx context.Context, userName string) (bool, error)
}

// PostService drives the post moderation state machine:
// Normal -> Reported -> (Cancelled back to Normal) |
// (ForciblyDeleted -> PendingPhysicalDeletion -> Gone).
type PostService struct {
	store       postStore
	policy      postPolicy
	scheduler   scheduler.Scheduler
	gracePeriod time.Duration
	clock       func() time.Time
	logger      *log.Entry
}

func NewPostService(store postStore, policy postPolicy, sched scheduler.Scheduler, gracePeriod time.Duration) *PostService {
	return &PostService{
		store:       store,
		policy:      policy,
		scheduler:   sched,
		gracePeriod: gracePeriod,
		clock:       time.Now,
		logger:      log.WithField("service", "moderation"),
	}
}

// ReportPost flags a post for review, creating a report ticket and linking
// it to the post atomically.
func (s *PostService) ReportPost(ctx context.Context, kind db.PostKind, postID int64, requestUserName string) (Code, error) {
	code, err := s.reportPost(ctx, kind, postID, requestUserName)
	s.record("report", requestUserName, string(kind), postID, code)
	return code, err
}

func (s *PostService) reportPost(ctx context.Context, kind db.PostKind, postID int64, requestUserName string) (Code, error) {
	author, ticketID, _, err := s.postState(ctx, kind, postID)
	if err != nil {
		return CodeError, err
	}
	if author == "" {
		return CodeNotFound, nil
	}

	allowed, err := s.policy.CanReportPost(ctx, requestUserName, author)
	if err != nil {
		return CodeError, errors.Wrap(err, "report permission")
	}
	if !allowed {
		return CodeUnauthorized, nil
	}
	if ticketID != nil {
		return CodeInvalidState, nil
	}

	ticket := &db.ReportTicket{
		CreatedAt:         s.clock().UTC(),
		ReportingUserName: requestUserName,
	}
	if kind == db.PostKindComment {
		ticket.CommentID = &postID
	} else {
		ticket.ThreadID = &postID
	}

	if _, err := s.store.CreateReportTicket(ctx, ticket); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return CodeInvalidState, nil
		}
		return CodeError, errors.Wrap(err, "create report ticket")
	}
	return CodeSuccess, nil
}

// CancelReportTicket removes an open ticket, returning the post to Normal.
// Admin only. Tickets whose action has already been taken cannot be
// cancelled; the deferred physical deletion is on its way.
func (s *PostService) CancelReportTicket(ctx context.Context, ticketID int64, userName string) (Code, error) {
	code, err := s.cancelReportTicket(ctx, ticketID, userName)
	s.record("cancel_report", userName, "ticket", ticketID, code)
	return code, err
}

func (s *PostService) cancelReportTicket(ctx context.Context, ticketID int64, userName string) (Code, error) {
	allowed, err := s.policy.CanReviewReportedPosts(ctx, userName)
	if err != nil {
		return CodeError, errors.Wrap(err, "review permission")
	}
	if !allowed {
		return CodeUnauthorized, nil
	}

	ticket, err := s.store.GetReportTicket(ctx, ticketID)
	if err != nil {
		return CodeError, errors.Wrap(err, "get report ticket")
	}
	if ticket == nil {
		return CodeNotFound, nil
	}
	if ticket.ActionAt != nil {
		return CodeInvalidState, nil
	}

	deleted, err := s.store.DeleteReportTicket(ctx, ticketID)
	if err != nil {
		return CodeError, errors.Wrap(err, "delete report ticket")
	}
	if !deleted {
		return CodeNotFound, nil
	}
	return CodeSuccess, nil
}

// ForciblyDelete censors a reported post and defers its physical removal by
// the grace period. Admin only; a post must be reported before it can be
// forcibly removed. With durable scheduling disabled the post is removed
// immediately instead.
func (s *PostService) ForciblyDelete(ctx context.Context, kind db.PostKind, postID int64, deletorUserName string) (Code, error) {
	code, err := s.forciblyDelete(ctx, kind, postID, deletorUserName)
	s.record("forcible_delete", deletorUserName, string(kind), postID, code)
	return code, err
}

func (s *PostService) forciblyDelete(ctx context.Context, kind db.PostKind, postID int64, deletorUserName string) (Code, error) {
	allowed, err := s.policy.CanReviewReportedPosts(ctx, deletorUserName)
	if err != nil {
		return CodeError, errors.Wrap(err, "review permission")
	}
	if !allowed {
		return CodeUnauthorized, nil
	}

	author, ticketID, pending, err := s.postState(ctx, kind, postID)
	if err != nil {
		return CodeError, err
	}
	if author == "" {
		return CodeNotFound, nil
	}
	if ticketID == nil {
		return CodeUnauthorized, nil
	}
	if pending {
		return CodeInvalidState, nil
	}

	now := s.clock().UTC()
	if kind == db.PostKindComment {
		err = s.store.CensorComment(ctx, postID, CensorPlaceholder, now)
	} else {
		err = s.store.CensorThread(ctx, postID, CensorPlaceholder, now)
	}
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			return CodeNotFound, nil
		case errors.Is(err, db.ErrConflict):
			return CodeInvalidState, nil
		}
		return CodeError, errors.Wrap(err, "censor post")
	}

	if !s.scheduler.Durable() {
		// Degraded mode: no job will ever fire, remove the post now.
		if err := s.deletePostNow(ctx, kind, postID); err != nil {
			return CodeError, err
		}
		return CodeSuccess, nil
	}

	if err := s.scheduler.ScheduleDeletion(ctx, kind, postID, now.Add(s.gracePeriod)); err != nil {
		return CodeError, errors.Wrap(err, "schedule deletion")
	}
	return CodeSuccess, nil
}

func (s *PostService) deletePostNow(ctx context.Context, kind db.PostKind, postID int64) error {
	var (
		deleted bool
		err     error
	)
	if kind == db.PostKindComment {
		deleted, err = s.store.DeleteComment(ctx, postID)
	} else {
		deleted, err = s.store.DeleteThread(ctx, postID)
	}
	if err != nil {
		return errors.Wrap(err, "delete post")
	}
	if !deleted {
		s.logger.WithFields(log.Fields{"kind": kind, "post_id": postID}).Info("post already gone")
	}
	return nil
}

// postState loads the moderation-relevant fields of either post variant.
// An empty author means the post does not exist.
func (s *PostService) postState(ctx context.Context, kind db.PostKind, postID int64) (author string, ticketID *int64, pendingDeletion bool, err error) {
	if kind == db.PostKindComment {
		comment, err := s.store.GetComment(ctx, postID)
		if err != nil {
			return "", nil, false, errors.Wrap(err, "get comment")
		}
		if comment == nil {
			return "", nil, false, nil
		}
		return comment.AuthorUserName, comment.ReportTicketID, comment.PendingDeletion, nil
	}
	thread, err := s.store.GetThread(ctx, postID)
	if err != nil {
		return "", nil, false, errors.Wrap(err, "get thread")
	}
	if thread == nil {
		return "", nil, false, nil
	}
	return thread.AuthorUserName, thread.ReportTicketID, thread.PendingDeletion, nil
}

func (s *PostService) record(action, actor, targetKind string, target int64, code Code) {
	observability.RecordModerationAction(action, code.String())
	event.Bus.Enqueue(&event.ModerationAction{
		At:         s.clock().UTC(),
		Action:     action,
		Actor:      actor,
		TargetKind: targetKind,
		Target:     strconv.FormatInt(target, 10),
		Code:       code.String(),
	})
}
