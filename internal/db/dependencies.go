package db

import (
	"context"
	"time"
)

type Store interface {
	Close() error

	CreateThread(ctx context.Context, thread *Thread) (*Thread, error)
	GetThread(ctx context.Context, id int64) (*Thread, error)
	DeleteThread(ctx context.Context, id int64) (bool, error)
	CensorThread(ctx context.Context, id int64, placeholder string, actionAt time.Time) error

	CreateComment(ctx context.Context, comment *Comment) (*Comment, error)
	GetComment(ctx context.Context, id int64) (*Comment, error)
	DeleteComment(ctx context.Context, id int64) (bool, error)
	CensorComment(ctx context.Context, id int64, placeholder string, actionAt time.Time) error

	CreateReportTicket(ctx context.Context, ticket *ReportTicket) (*ReportTicket, error)
	GetReportTicket(ctx context.Context, id int64) (*ReportTicket, error)
	DeleteReportTicket(ctx context.Context, id int64) (bool, error)

	InsertBanTicket(ctx context.Context, ticket *BanTicket) error
	GetBanTicket(ctx context.Context, userName string) (*BanTicket, error)
	BanTicketExists(ctx context.Context, userName string) (bool, error)
	DeleteBanTicket(ctx context.Context, userName string) (bool, error)

	HasRole(ctx context.Context, userName, role string) (bool, error)
	AddToRole(ctx context.Context, userName, role string) error
	RemoveFromRole(ctx context.Context, userName, role string) error

	InsertJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ClaimDueJobs(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*Job, error)
	CompleteJob(ctx context.Context, id string, at time.Time) error
	ReleaseJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, at time.Time) error
}
