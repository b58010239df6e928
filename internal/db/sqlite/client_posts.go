package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/openboard/modkit/internal/db"
)

const threadColumns = "id, author_user_name, title, body, created_at, updated_at, report_ticket_id, pending_deletion"

func (c *sqliteClient) CreateThread(ctx context.Context, thread *db.Thread) (*db.Thread, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO threads (author_user_name, title, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, thread.AuthorUserName, thread.Title, thread.Body, thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert thread")
	}
	thread.ID, err = res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "thread id")
	}
	return thread, nil
}

func (c *sqliteClient) GetThread(ctx context.Context, id int64) (*db.Thread, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var thread db.Thread
	err := c.db.GetContext(ctx, &thread, `SELECT `+threadColumns+` FROM threads WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get thread")
	}
	return &thread, nil
}

func (c *sqliteClient) DeleteThread(ctx context.Context, id int64) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrap(err, "delete thread")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "delete thread rows")
	}
	return n > 0, nil
}

func (c *sqliteClient) CensorThread(ctx context.Context, id int64, placeholder string, actionAt time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin censor thread")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE threads
		SET title = ?, body = ?, pending_deletion = 1, updated_at = ?
		WHERE id = ? AND report_ticket_id IS NOT NULL AND pending_deletion = 0
	`, placeholder, placeholder, actionAt, id)
	if err != nil {
		return errors.Wrap(err, "censor thread")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "censor thread rows")
	}
	if n == 0 {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM threads WHERE id = ?`, id); err != nil {
			return errors.Wrap(err, "censor thread lookup")
		}
		if count == 0 {
			return db.ErrNotFound
		}
		return db.ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `UPDATE report_tickets SET action_at = ? WHERE thread_id = ?`, actionAt, id); err != nil {
		return errors.Wrap(err, "stamp thread ticket")
	}
	return errors.Wrap(tx.Commit(), "commit censor thread")
}

const commentColumns = "id, thread_id, author_user_name, body, created_at, updated_at, report_ticket_id, pending_deletion"

func (c *sqliteClient) CreateComment(ctx context.Context, comment *db.Comment) (*db.Comment, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO comments (thread_id, author_user_name, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, comment.ThreadID, comment.AuthorUserName, comment.Body, comment.CreatedAt, comment.UpdatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert comment")
	}
	comment.ID, err = res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "comment id")
	}
	return comment, nil
}

func (c *sqliteClient) GetComment(ctx context.Context, id int64) (*db.Comment, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var comment db.Comment
	err := c.db.GetContext(ctx, &comment, `SELECT `+commentColumns+` FROM comments WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get comment")
	}
	return &comment, nil
}

func (c *sqliteClient) DeleteComment(ctx context.Context, id int64) (bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrap(err, "delete comment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "delete comment rows")
	}
	return n > 0, nil
}

func (c *sqliteClient) CensorComment(ctx context.Context, id int64, placeholder string, actionAt time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin censor comment")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE comments
		SET body = ?, pending_deletion = 1, updated_at = ?
		WHERE id = ? AND report_ticket_id IS NOT NULL AND pending_deletion = 0
	`, placeholder, actionAt, id)
	if err != nil {
		return errors.Wrap(err, "censor comment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "censor comment rows")
	}
	if n == 0 {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM comments WHERE id = ?`, id); err != nil {
			return errors.Wrap(err, "censor comment lookup")
		}
		if count == 0 {
			return db.ErrNotFound
		}
		return db.ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `UPDATE report_tickets SET action_at = ? WHERE comment_id = ?`, actionAt, id); err != nil {
		return errors.Wrap(err, "stamp comment ticket")
	}
	return errors.Wrap(tx.Commit(), "commit censor comment")
}
