package db

import (
	"errors"
	"time"
)

type PostKind string

const (
	PostKindThread  PostKind = "thread"
	PostKindComment PostKind = "comment"
)

type (
	Thread struct {
		ID              int64      `db:"id"`
		AuthorUserName  string     `db:"author_user_name"`
		Title           string     `db:"title"`
		Body            string     `db:"body"`
		CreatedAt       time.Time  `db:"created_at"`
		UpdatedAt       time.Time  `db:"updated_at"`
		ReportTicketID  *int64     `db:"report_ticket_id"`
		PendingDeletion bool       `db:"pending_deletion"`
	}

	Comment struct {
		ID              int64      `db:"id"`
		ThreadID        int64      `db:"thread_id"`
		AuthorUserName  string     `db:"author_user_name"`
		Body            string     `db:"body"`
		CreatedAt       time.Time  `db:"created_at"`
		UpdatedAt       time.Time  `db:"updated_at"`
		ReportTicketID  *int64     `db:"report_ticket_id"`
		PendingDeletion bool       `db:"pending_deletion"`
	}

	// ReportTicket flags a single post for review. Exactly one of ThreadID
	// and CommentID is set.
	ReportTicket struct {
		ID                int64      `db:"id"`
		CreatedAt         time.Time  `db:"created_at"`
		ActionAt          *time.Time `db:"action_at"`
		ReportingUserName string     `db:"reporting_user_name"`
		ThreadID          *int64     `db:"thread_id"`
		CommentID         *int64     `db:"comment_id"`
	}

	BanTicket struct {
		UserName  string     `db:"user_name"`
		CreatedAt time.Time  `db:"created_at"`
		ExpiresAt *time.Time `db:"expires_at"`
	}

	Job struct {
		ID           string     `db:"id"`
		Kind         string     `db:"kind"`
		Argument     string     `db:"argument"`
		FireAt       time.Time  `db:"fire_at"`
		CreatedAt    time.Time  `db:"created_at"`
		ClaimedAt    *time.Time `db:"claimed_at"`
		CompletedAt  *time.Time `db:"completed_at"`
		FailedAt     *time.Time `db:"failed_at"`
		FailureCount int        `db:"failure_count"`
	}
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional write loses a race, e.g.
	// reporting a post that already carries a ticket or banning a user who
	// already has one.
	ErrConflict = errors.New("conflict")
)

func (t *ReportTicket) Validate() error {
	if t == nil {
		return errors.New("nil ticket")
	}
	if (t.ThreadID == nil) == (t.CommentID == nil) {
		return errors.New("ticket must reference exactly one of thread, comment")
	}
	return nil
}

// PostKind reports which post variant the ticket references.
func (t *ReportTicket) PostKind() PostKind {
	if t.CommentID != nil {
		return PostKindComment
	}
	return PostKindThread
}

// PostID returns the referenced post id regardless of variant.
func (t *ReportTicket) PostID() int64 {
	if t.CommentID != nil {
		return *t.CommentID
	}
	if t.ThreadID != nil {
		return *t.ThreadID
	}
	return 0
}

// Permanent reports whether the ban never expires on its own.
func (b *BanTicket) Permanent() bool {
	return b != nil && b.ExpiresAt == nil
}
