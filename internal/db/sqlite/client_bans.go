package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/openboard/modkit/internal/db"
)

func (c *sqliteClient) InsertBanTicket(ctx context.Context, ticket *db.BanTicket) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO ban_tickets (user_name, created_at, expires_at) VALUES (?, ?, ?)
	`, ticket.UserName, ticket.CreatedAt, ticket.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return db.ErrConflict
		}
		return errors.Wrap(err, "insert ban ticket")
	}
	return nil
}

func (c *sqliteClient) GetBanTicket(ctx context.Context, userName string) (*db.BanTicket, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var ticket db.BanTicket
	err := c.db.GetContext(ctx, &ticket, `
		SELECT user_name, created_at, expires_at FROM ban_tickets WHERE user_name = ?
	`, userName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get ban ticket")
	}
	return &ticket, nil
}

func (c *sqliteClient) BanTicketExists(ctx context.Context, userName string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	if err := c.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM ban_tickets WHERE user_name = ?`, userName); err != nil {
		return false, errors.Wrap(err, "count ban tickets")
	}
	return count > 0, nil
}

func (c *sqliteClient) DeleteBanTicket(ctx context.Context, userName string) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM ban_tickets WHERE user_name = ?`, userName)
	if err != nil {
		return false, errors.Wrap(err, "delete ban ticket")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "delete ban ticket rows")
	}
	return n > 0, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
