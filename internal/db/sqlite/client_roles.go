package sqlite

import (
	"context"

	"github.com/iamwavecut/tool"
	"github.com/pkg/errors"
)

func (c *sqliteClient) HasRole(ctx context.Context, userName, role string) (bool, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var count int
	if err := c.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM user_roles WHERE user_name = ? AND role = ?
	`, userName, role); err != nil {
		return false, errors.Wrap(err, "count roles")
	}
	return count > 0, nil
}

func (c *sqliteClient) AddToRole(ctx context.Context, userName, role string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return tool.Err(c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO user_roles (user_name, role) VALUES (?, ?)
	`, userName, role))
}

func (c *sqliteClient) RemoveFromRole(ctx context.Context, userName, role string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return tool.Err(c.db.ExecContext(ctx, `
		DELETE FROM user_roles WHERE user_name = ? AND role = ?
	`, userName, role))
}
