package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/openboard/modkit/internal/db"
)

const jobColumns = "id, kind, argument, fire_at, created_at, claimed_at, completed_at, failed_at, failure_count"

func (c *sqliteClient) InsertJob(ctx context.Context, job *db.Job) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, argument, fire_at, created_at, failure_count)
		VALUES (?, ?, ?, ?, ?, 0)
	`, job.ID, job.Kind, job.Argument, job.FireAt, job.CreatedAt)
	return errors.Wrap(err, "insert job")
}

func (c *sqliteClient) GetJob(ctx context.Context, id string) (*db.Job, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var job db.Job
	err := c.db.GetContext(ctx, &job, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get job")
	}
	return &job, nil
}

// ClaimDueJobs marks due jobs as claimed and returns the ones this caller
// won. The claim is a conditional update on claimed_at, so two concurrent
// pollers never both receive the same job. Claims older than claimTTL are
// treated as abandoned and may be re-claimed.
func (c *sqliteClient) ClaimDueJobs(ctx context.Context, now time.Time, claimTTL time.Duration, limit int) ([]*db.Job, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	staleBefore := now.Add(-claimTTL)

	var candidates []*db.Job
	err := c.db.SelectContext(ctx, &candidates, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE completed_at IS NULL AND failed_at IS NULL
			AND fire_at <= ?
			AND (claimed_at IS NULL OR claimed_at <= ?)
		ORDER BY fire_at
		LIMIT ?
	`, now, staleBefore, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due jobs")
	}

	claimed := make([]*db.Job, 0, len(candidates))
	for _, job := range candidates {
		res, err := c.db.ExecContext(ctx, `
			UPDATE jobs
			SET claimed_at = ?
			WHERE id = ? AND completed_at IS NULL AND failed_at IS NULL
				AND (claimed_at IS NULL OR claimed_at <= ?)
		`, now, job.ID, staleBefore)
		if err != nil {
			return claimed, errors.Wrap(err, "claim job")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return claimed, errors.Wrap(err, "claim job rows")
		}
		if n == 0 {
			continue
		}
		claimedAt := now
		job.ClaimedAt = &claimedAt
		claimed = append(claimed, job)
	}
	return claimed, nil
}

func (c *sqliteClient) CompleteJob(ctx context.Context, id string, at time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		UPDATE jobs SET completed_at = ? WHERE id = ? AND completed_at IS NULL
	`, at, id)
	return errors.Wrap(err, "complete job")
}

// ReleaseJob returns a claimed job to the pool after a failed execution,
// counting the failure.
func (c *sqliteClient) ReleaseJob(ctx context.Context, id string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		UPDATE jobs SET claimed_at = NULL, failure_count = failure_count + 1 WHERE id = ?
	`, id)
	return errors.Wrap(err, "release job")
}

func (c *sqliteClient) FailJob(ctx context.Context, id string, at time.Time) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, err := c.db.ExecContext(ctx, `
		UPDATE jobs SET failed_at = ?, claimed_at = NULL WHERE id = ?
	`, at, id)
	return errors.Wrap(err, "fail job")
}
