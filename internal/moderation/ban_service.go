package moderation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/openboard/modkit/internal/db"
	"github.com/openboard/modkit/internal/event"
	"github.com/openboard/modkit/internal/observability"
	"github.com/openboard/modkit/internal/policy/permissions"
	"github.com/openboard/modkit/internal/scheduler"
)

type banStore interface {
	InsertBanTicket(ctx context.Context, ticket *db.BanTicket) error
	BanTicketExists(ctx context.Context, userName string) (bool, error)
	DeleteBanTicket(ctx context.Context, userName string) (bool, error)
}

type roleManager interface {
	HasRole(ctx context.Context, userName, role string) (bool, error)
	RemoveFromRole(ctx context.Context, userName, role string) error
}

// BanService governs posting rights: ban tickets with optional automatic
// time-based expiry, and immediate unban.
type BanService struct {
	store     banStore
	roles     roleManager
	scheduler scheduler.Scheduler
	clock     func() time.Time
	logger    *log.Entry
}

func NewBanService(store banStore, roles roleManager, sched scheduler.Scheduler) *BanService {
	return &BanService{
		store:     store,
		roles:     roles,
		scheduler: sched,
		clock:     time.Now,
		logger:    log.WithField("service", "user_moderation"),
	}
}

// BanUser inserts a ban ticket for the target. Admin only. An expiry, if
// given, must be strictly after today at day granularity; a nil expiry is a
// permanent ban and schedules nothing. Banning strips the target's
// moderator role.
func (s *BanService) BanUser(ctx context.Context, targetUserName, actingUserName string, expiry *time.Time) (Code, error) {
	code, err := s.banUser(ctx, targetUserName, actingUserName, expiry)
	s.record("ban", actingUserName, targetUserName, code)
	return code, err
}

func (s *BanService) banUser(ctx context.Context, targetUserName, actingUserName string, expiry *time.Time) (Code, error) {
	isAdmin, err := s.roles.HasRole(ctx, actingUserName, permissions.RoleAdmin)
	if err != nil {
		return CodeError, errors.Wrap(err, "admin check")
	}
	if !isAdmin {
		return CodeUnauthorized, nil
	}

	now := s.clock().UTC()
	if expiry != nil {
		today := now.Truncate(24 * time.Hour)
		expiryDay := expiry.UTC().Truncate(24 * time.Hour)
		if !expiryDay.After(today) {
			return CodeInvalidArguments, nil
		}
	}

	exists, err := s.store.BanTicketExists(ctx, targetUserName)
	if err != nil {
		return CodeError, errors.Wrap(err, "ban lookup")
	}
	if exists {
		return CodeInvalidArguments, nil
	}

	// A banned user cannot retain moderation privileges.
	if err := s.roles.RemoveFromRole(ctx, targetUserName, permissions.RoleModerator); err != nil {
		return CodeError, errors.Wrap(err, "strip moderator role")
	}

	ticket := &db.BanTicket{
		UserName:  targetUserName,
		CreatedAt: now,
		ExpiresAt: expiry,
	}
	if err := s.store.InsertBanTicket(ctx, ticket); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return CodeInvalidArguments, nil
		}
		return CodeError, errors.Wrap(err, "insert ban ticket")
	}

	if expiry != nil {
		if err := s.scheduler.ScheduleBanExpiry(ctx, targetUserName, expiry.UTC()); err != nil {
			return CodeError, errors.Wrap(err, "schedule ban expiry")
		}
	}
	return CodeSuccess, nil
}

// RemoveBanTicket lifts a ban immediately. Admin only. A ticket that is
// already gone is a successful no-op, matching the scheduler's idempotency
// contract.
func (s *BanService) RemoveBanTicket(ctx context.Context, targetUserName, actingUserName string) (Code, error) {
	code, err := s.removeBanTicket(ctx, targetUserName, actingUserName)
	s.record("unban", actingUserName, targetUserName, code)
	return code, err
}

func (s *BanService) removeBanTicket(ctx context.Context, targetUserName, actingUserName string) (Code, error) {
	isAdmin, err := s.roles.HasRole(ctx, actingUserName, permissions.RoleAdmin)
	if err != nil {
		return CodeError, errors.Wrap(err, "admin check")
	}
	if !isAdmin {
		return CodeUnauthorized, nil
	}

	deleted, err := s.store.DeleteBanTicket(ctx, targetUserName)
	if err != nil {
		return CodeError, errors.Wrap(err, "delete ban ticket")
	}
	if !deleted {
		s.logger.WithField("user_name", targetUserName).Info("ban ticket already gone")
	}
	return CodeSuccess, nil
}

func (s *BanService) record(action, actor, target string, code Code) {
	observability.RecordModerationAction(action, code.String())
	event.Bus.Enqueue(&event.ModerationAction{
		At:         s.clock().UTC(),
		Action:     action,
		Actor:      actor,
		TargetKind: "user",
		Target:     target,
		Code:       code.String(),
	})
}
