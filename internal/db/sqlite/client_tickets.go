package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/openboard/modkit/internal/db"
)

const ticketColumns = "id, created_at, action_at, reporting_user_name, thread_id, comment_id"

// CreateReportTicket inserts the ticket and flags the referenced post in one
// transaction. A post that already carries a ticket loses the race and the
// caller observes db.ErrConflict.
func (c *sqliteClient) CreateReportTicket(ctx context.Context, ticket *db.ReportTicket) (*db.ReportTicket, error) {
	if err := ticket.Validate(); err != nil {
		return nil, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin create ticket")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO report_tickets (created_at, reporting_user_name, thread_id, comment_id)
		VALUES (?, ?, ?, ?)
	`, ticket.CreatedAt, ticket.ReportingUserName, ticket.ThreadID, ticket.CommentID)
	if err != nil {
		return nil, errors.Wrap(err, "insert ticket")
	}
	ticket.ID, err = res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "ticket id")
	}

	var flag sql.Result
	switch ticket.PostKind() {
	case db.PostKindComment:
		flag, err = tx.ExecContext(ctx, `
			UPDATE comments SET report_ticket_id = ? WHERE id = ? AND report_ticket_id IS NULL
		`, ticket.ID, *ticket.CommentID)
	default:
		flag, err = tx.ExecContext(ctx, `
			UPDATE threads SET report_ticket_id = ? WHERE id = ? AND report_ticket_id IS NULL
		`, ticket.ID, *ticket.ThreadID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "flag post")
	}
	n, err := flag.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "flag post rows")
	}
	if n == 0 {
		return nil, db.ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit create ticket")
	}
	return ticket, nil
}

func (c *sqliteClient) GetReportTicket(ctx context.Context, id int64) (*db.ReportTicket, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var ticket db.ReportTicket
	err := c.db.GetContext(ctx, &ticket, `SELECT `+ticketColumns+` FROM report_tickets WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get ticket")
	}
	return &ticket, nil
}

// DeleteReportTicket removes the ticket and unflags the referenced post in
// one transaction, returning the post to its normal state.
func (c *sqliteClient) DeleteReportTicket(ctx context.Context, id int64) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "begin delete ticket")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE threads SET report_ticket_id = NULL WHERE report_ticket_id = ?
	`, id); err != nil {
		return false, errors.Wrap(err, "unflag thread")
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE comments SET report_ticket_id = NULL WHERE report_ticket_id = ?
	`, id); err != nil {
		return false, errors.Wrap(err, "unflag comment")
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM report_tickets WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrap(err, "delete ticket")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "delete ticket rows")
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit delete ticket")
	}
	return n > 0, nil
}
