package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stridehub/sync-server-go/internal/model"
)

type BackfillChunkRepository interface {
	CreateChunks(ctx context.Context, chunks []model.CreateChunkParams) (int64, error)
	FindByID(ctx context.Context, id string) (*model.BackfillChunk, error)
	FindByUserAndStatuses(ctx context.Context, userID string, statuses ...model.ChunkStatus) ([]model.BackfillChunk, error)
	MarkRequested(ctx context.Context, id string) error
	MarkAlreadyProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, message string) error
	RecordDelivery(ctx context.Context, userID string, eventTS int64) (int64, error)
	ResetFailed(ctx context.Context, userID string) (int64, error)
	MarkStaleReceived(ctx context.Context, maxAge time.Duration) (int64, error)
	Progress(ctx context.Context, userID string) (*model.BackfillProgress, error)
}

type backfillChunkRepo struct {
	db *sqlx.DB
}

func NewBackfillChunkRepository(db *sqlx.DB) BackfillChunkRepository {
	return &backfillChunkRepo{db: db}
}

// CreateChunks inserts a batch of chunk rows, ignoring duplicates on
// (user_id, chunk_start, chunk_end). Re-running backfill for a user never
// produces duplicate ranges.
func (r *backfillChunkRepo) CreateChunks(ctx context.Context, chunks []model.CreateChunkParams) (int64, error) {
	var created int64
	for _, c := range chunks {
		result, err := r.db.ExecContext(ctx, `
			INSERT INTO backfill_chunks (user_id, chunk_start, chunk_end, start_ts, end_ts)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, chunk_start, chunk_end) DO NOTHING
		`, c.UserID, c.ChunkStart, c.ChunkEnd, c.StartTS, c.EndTS)
		if err != nil {
			return created, err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return created, err
		}
		created += rows
	}
	return created, nil
}

func (r *backfillChunkRepo) FindByID(ctx context.Context, id string) (*model.BackfillChunk, error) {
	var chunk model.BackfillChunk
	err := r.db.GetContext(ctx, &chunk, `
		SELECT * FROM backfill_chunks WHERE id = $1
	`, id)
	return HandleNotFound(&chunk, err)
}

func (r *backfillChunkRepo) FindByUserAndStatuses(ctx context.Context, userID string, statuses ...model.ChunkStatus) ([]model.BackfillChunk, error) {
	query, args, err := sqlx.In(`
		SELECT * FROM backfill_chunks
		WHERE user_id = ? AND status IN (?)
		ORDER BY chunk_start ASC
	`, userID, statuses)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var chunks []model.BackfillChunk
	if err := r.db.SelectContext(ctx, &chunks, query, args...); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *backfillChunkRepo) MarkRequested(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE backfill_chunks
		SET status = 'requested', requested_at = NOW(), error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *backfillChunkRepo) MarkAlreadyProcessed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE backfill_chunks
		SET status = 'already_processed', error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *backfillChunkRepo) MarkFailed(ctx context.Context, id string, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE backfill_chunks
		SET status = 'failed', retry_count = retry_count + 1, error_message = $2, updated_at = NOW()
		WHERE id = $1
	`, id, message)
	return err
}

// RecordDelivery bumps the activity counter on the requested chunk whose
// window covers eventTS. It deliberately does not transition the chunk to
// received: more deliveries for the same window may still be in flight, and
// the stale sweep closes the window later.
func (r *backfillChunkRepo) RecordDelivery(ctx context.Context, userID string, eventTS int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE backfill_chunks
		SET activity_count = activity_count + 1, received_at = NOW(), updated_at = NOW()
		WHERE user_id = $1
		  AND status = 'requested'
		  AND $2 >= start_ts AND $2 <= end_ts
	`, userID, eventTS)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *backfillChunkRepo) ResetFailed(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE backfill_chunks
		SET status = 'pending', error_message = NULL, updated_at = NOW()
		WHERE user_id = $1 AND status = 'failed'
	`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// MarkStaleReceived closes out chunks that have been requested for longer
// than maxAge. Silence from the provider means no more data is coming for
// that window, not failure.
func (r *backfillChunkRepo) MarkStaleReceived(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE backfill_chunks
		SET status = 'received', received_at = COALESCE(received_at, NOW()), updated_at = NOW()
		WHERE status = 'requested' AND requested_at < NOW() - $1 * INTERVAL '1 second'
	`, int64(maxAge.Seconds()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *backfillChunkRepo) Progress(ctx context.Context, userID string) (*model.BackfillProgress, error) {
	var rows []struct {
		Status model.ChunkStatus `db:"status"`
		Count  int               `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count
		FROM backfill_chunks
		WHERE user_id = $1
		GROUP BY status
	`, userID)
	if err != nil {
		return nil, err
	}

	progress := &model.BackfillProgress{}
	for _, row := range rows {
		progress.Total += row.Count
		switch row.Status {
		case model.ChunkStatusPending:
			progress.Pending = row.Count
		case model.ChunkStatusRequested:
			progress.Requested = row.Count
		case model.ChunkStatusReceived:
			progress.Received = row.Count
		case model.ChunkStatusAlreadyProcessed:
			progress.AlreadyProcessed = row.Count
		case model.ChunkStatusFailed:
			progress.Failed = row.Count
		}
	}
	if progress.Total > 0 {
		progress.PercentComplete = float64(progress.Received+progress.AlreadyProcessed) / float64(progress.Total)
	}
	return progress, nil
}
