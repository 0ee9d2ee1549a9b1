package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tripdesk/tripdesk/internal/core/catalog"
)

// Migrate creates one table per catalog type. Every table shares the same
// shape: a surrogate id column plus a jsonb document, matching the
// delegate contract.
func Migrate(ctx context.Context, c *Client, logger *zap.Logger) error {
	for _, t := range catalog.All {
		table := catalog.TableName(t)
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				data JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`, table)
		if _, err := c.DB.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}

	// Composite-key association rows are located by their two foreign keys.
	uniq := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_tag_proposal
		ON %[1]s ((data->>'tagId'), (data->>'proposalId'))`, catalog.TableName(catalog.ProposalTag))
	if _, err := c.DB.ExecContext(ctx, uniq); err != nil {
		return err
	}

	// The activity timeline is read filtered by owning task.
	idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_task_id
		ON %[1]s ((data->>'taskId'))`, catalog.TableName(catalog.TaskActivity))
	if _, err := c.DB.ExecContext(ctx, idx); err != nil {
		return err
	}

	logger.Info("database schema ready", zap.Int("tables", len(catalog.All)))
	return nil
}
