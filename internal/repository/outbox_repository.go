package repository

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const outboxColumns = `id, order_id, kind, status, attempts, next_attempt_at, last_error, created_at, updated_at`

// outboxRepository implements OutboxRepository using PostgreSQL.
type outboxRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOutboxRepository creates a new PostgreSQL-backed outbox repository.
func NewOutboxRepository(pool *pgxpool.Pool, logger zerolog.Logger) OutboxRepository {
	return &outboxRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "outbox").Logger(),
	}
}

// Enqueue adds pending tasks for an order within the provided transaction.
func (r *outboxRepository) Enqueue(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, kinds ...model.TaskKind) error {
	if len(kinds) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_outbox (id, order_id, kind, status, next_attempt_at)
		VALUES ($1, $2, $3, 'pending', NOW())
	`

	batch := &pgx.Batch{}
	for _, kind := range kinds {
		batch.Queue(query, ulid.Make().String(), orderID, kind)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for _, kind := range kinds {
		if _, err := results.Exec(); err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", orderID.String()).
				Str("kind", string(kind)).
				Msg("failed to enqueue side effect")
			return fmt.Errorf("failed to enqueue %s: %w", kind, err)
		}
	}

	return nil
}

// ClaimDue leases due tasks. Rows locked by another worker are skipped.
func (r *outboxRepository) ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]model.OutboxTask, error) {
	query := `
		UPDATE order_outbox
		SET attempts = attempts + 1,
			locked_until = NOW() + make_interval(secs => $2),
			updated_at = NOW()
		WHERE id IN (
			SELECT id FROM order_outbox
			WHERE status = 'pending'
				AND next_attempt_at <= NOW()
				AND (locked_until IS NULL OR locked_until < NOW())
			ORDER BY next_attempt_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns

	rows, err := r.pool.Query(ctx, query, limit, lease.Seconds())
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to claim outbox tasks")
		return nil, fmt.Errorf("failed to claim outbox tasks: %w", err)
	}
	return collectTasks(rows)
}

// MarkDone completes a task.
func (r *outboxRepository) MarkDone(ctx context.Context, id string) error {
	return r.update(ctx, id, `
		UPDATE order_outbox
		SET status = 'done', locked_until = NULL, last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`)
}

// MarkRetry releases a task to run again at next.
func (r *outboxRepository) MarkRetry(ctx context.Context, id string, next time.Time, lastError string) error {
	return r.update(ctx, id, `
		UPDATE order_outbox
		SET next_attempt_at = $2, last_error = $3, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, next, lastError)
}

// MarkFailed parks a task for operator attention.
func (r *outboxRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	return r.update(ctx, id, `
		UPDATE order_outbox
		SET status = 'failed', last_error = $2, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, lastError)
}

// ListFailed returns parked tasks, oldest first.
func (r *outboxRepository) ListFailed(ctx context.Context, limit int) ([]model.OutboxTask, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM order_outbox
		WHERE status = 'failed'
		ORDER BY updated_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list failed outbox tasks")
		return nil, fmt.Errorf("failed to list failed outbox tasks: %w", err)
	}
	return collectTasks(rows)
}

// Requeue returns a failed task to the pending queue.
func (r *outboxRepository) Requeue(ctx context.Context, id string) error {
	return r.update(ctx, id, `
		UPDATE order_outbox
		SET status = 'pending', attempts = 0, next_attempt_at = NOW(), locked_until = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'failed'
	`)
}

func (r *outboxRepository) update(ctx context.Context, id, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		r.logger.Error().Err(err).Str("task_id", id).Msg("failed to update outbox task")
		return fmt.Errorf("failed to update outbox task %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTaskNotFound
	}
	return nil
}

func collectTasks(rows pgx.Rows) ([]model.OutboxTask, error) {
	defer rows.Close()

	var tasks []model.OutboxTask
	for rows.Next() {
		var t model.OutboxTask
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Kind, &t.Status, &t.Attempts, &t.NextAttemptAt,
			&t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox tasks: %w", err)
	}

	return tasks, nil
}
