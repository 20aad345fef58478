package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stridehub/sync-server-go/internal/config"
	"github.com/stridehub/sync-server-go/internal/garmin"
	"github.com/stridehub/sync-server-go/internal/model"
	"github.com/stridehub/sync-server-go/internal/repository"
)

// ErrBackfillUnauthorized aborts a request loop: the token died mid-run and
// every further request would just burn rate-limit budget.
var ErrBackfillUnauthorized = errors.New("backfill aborted: provider rejected the access token")

// ErrBackfillIncomplete ends a request loop early because the request context
// was cancelled (timeout or shutdown). The remaining chunks stay pending, so
// the next call resumes where this one stopped.
var ErrBackfillIncomplete = errors.New("backfill incomplete: cancelled before all chunks were requested")

// ChunkWindow is one bounded time window of a backfill horizon.
type ChunkWindow struct {
	Start time.Time
	End   time.Time
}

// GenerateChunks splits [now - yearsBack, now] into contiguous,
// non-overlapping windows of chunkMonths calendar months, the final window
// truncated to now. The horizon is capped at maxYears. Pure and deterministic
// given (now, yearsBack).
func GenerateChunks(now time.Time, yearsBack, maxYears, chunkMonths int) []ChunkWindow {
	if yearsBack > maxYears {
		yearsBack = maxYears
	}
	if yearsBack <= 0 || chunkMonths <= 0 {
		return nil
	}

	var windows []ChunkWindow
	cursor := now.AddDate(-yearsBack, 0, 0)
	for cursor.Before(now) {
		end := cursor.AddDate(0, chunkMonths, 0)
		if end.After(now) {
			end = now
		}
		windows = append(windows, ChunkWindow{Start: cursor, End: end})
		cursor = end
	}
	return windows
}

// BackfillService orchestrates chunked historical import: it persists the
// chunk plan, requests each chunk from the provider with an inter-request
// delay, and reconciles chunk state as webhook deliveries arrive.
type BackfillService struct {
	cfg       *config.Config
	chunkRepo repository.BackfillChunkRepository
	api       garmin.API

	now   func() time.Time
	sleep func(time.Duration)
}

func NewBackfillService(cfg *config.Config, chunkRepo repository.BackfillChunkRepository, api garmin.API) *BackfillService {
	return &BackfillService{
		cfg:       cfg,
		chunkRepo: chunkRepo,
		api:       api,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// StartBackfill creates the chunk plan for the requested horizon (idempotent:
// existing ranges are left alone) and runs one request loop over every chunk
// still pending or failed.
func (s *BackfillService) StartBackfill(ctx context.Context, userID, token string, yearsBack int) (*model.BackfillSummary, error) {
	if yearsBack <= 0 {
		return nil, fmt.Errorf("yearsBack must be positive, got %d", yearsBack)
	}

	windows := GenerateChunks(s.now(), yearsBack, s.cfg.BackfillMaxYears, s.cfg.BackfillChunkMonths)
	params := make([]model.CreateChunkParams, 0, len(windows))
	for _, w := range windows {
		params = append(params, model.CreateChunkParams{
			UserID:     userID,
			ChunkStart: w.Start,
			ChunkEnd:   w.End,
			StartTS:    w.Start.Unix(),
			EndTS:      w.End.Unix(),
		})
	}

	created, err := s.chunkRepo.CreateChunks(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create backfill chunks: %w", err)
	}

	log.Info().Str("userId", userID).Int("windows", len(windows)).Int64("created", created).
		Msg("backfill chunk plan ready")

	return s.runRequestLoop(ctx, userID, token)
}

// runRequestLoop issues one provider request per pending/failed chunk,
// sequentially, pausing between requests to respect provider rate limits.
func (s *BackfillService) runRequestLoop(ctx context.Context, userID, token string) (*model.BackfillSummary, error) {
	chunks, err := s.chunkRepo.FindByUserAndStatuses(ctx, userID, model.ChunkStatusPending, model.ChunkStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	summary := &model.BackfillSummary{
		RunID:       uuid.NewString(),
		TotalChunks: len(chunks),
	}

	for i, chunk := range chunks {
		if i > 0 {
			s.sleep(s.cfg.BackfillRequestGap())
		}
		if ctx.Err() != nil {
			log.Warn().Str("userId", userID).Str("runId", summary.RunID).
				Int("requested", summary.Requested).Int("remaining", len(chunks)-i).
				Msg("backfill run cancelled, remaining chunks stay pending")
			summary.Incomplete = true
			return summary, ErrBackfillIncomplete
		}

		err := s.api.RequestBackfill(ctx, token, chunk.StartTS, chunk.EndTS)
		switch {
		case err == nil:
			if err := s.chunkRepo.MarkRequested(ctx, chunk.ID); err != nil {
				return summary, fmt.Errorf("failed to mark chunk %s requested: %w", chunk.ID, err)
			}
			summary.Requested++

		case errors.Is(err, garmin.ErrDuplicateRange):
			if err := s.chunkRepo.MarkAlreadyProcessed(ctx, chunk.ID); err != nil {
				return summary, fmt.Errorf("failed to mark chunk %s already processed: %w", chunk.ID, err)
			}
			summary.AlreadyProcessed++

		case ctx.Err() != nil:
			// Cancellation mid-call is not the chunk's fault, leave it
			// pending for the next run. A provider call that timed out
			// on its own lands in the failure branch below instead.
			log.Warn().Str("userId", userID).Str("runId", summary.RunID).
				Int("requested", summary.Requested).Int("remaining", len(chunks)-i).
				Msg("backfill run cancelled, remaining chunks stay pending")
			summary.Incomplete = true
			return summary, ErrBackfillIncomplete

		case errors.Is(err, garmin.ErrUnauthorized):
			log.Warn().Str("userId", userID).Str("runId", summary.RunID).
				Msg("access token rejected mid-backfill, aborting remaining chunks")
			return summary, ErrBackfillUnauthorized

		default:
			// One chunk's failure must not abort the batch.
			if markErr := s.chunkRepo.MarkFailed(ctx, chunk.ID, err.Error()); markErr != nil {
				return summary, fmt.Errorf("failed to mark chunk %s failed: %w", chunk.ID, markErr)
			}
			summary.Failed++
			summary.Errors = append(summary.Errors, model.ChunkError{
				ChunkID: chunk.ID,
				StartTS: chunk.StartTS,
				EndTS:   chunk.EndTS,
				Message: err.Error(),
			})
			log.Warn().Err(err).Str("chunkId", chunk.ID).Msg("backfill chunk request failed")
		}
	}

	log.Info().Str("userId", userID).Str("runId", summary.RunID).
		Int("requested", summary.Requested).
		Int("alreadyProcessed", summary.AlreadyProcessed).
		Int("failed", summary.Failed).
		Msg("backfill request loop finished")

	return summary, nil
}

// RecordDelivery credits one webhook-delivered activity to the requested
// chunk covering its start time. The chunk stays requested: more deliveries
// for the same window may still arrive, the stale sweep closes it later.
func (s *BackfillService) RecordDelivery(ctx context.Context, userID string, eventTS int64) error {
	matched, err := s.chunkRepo.RecordDelivery(ctx, userID, eventTS)
	if err != nil {
		return err
	}
	if matched > 0 {
		log.Debug().Str("userId", userID).Int64("eventTs", eventTS).Msg("chunk delivery recorded")
	}
	return nil
}

// RetryFailed resets failed chunks to pending so the next request loop picks
// them up again.
func (s *BackfillService) RetryFailed(ctx context.Context, userID string) (int64, error) {
	reset, err := s.chunkRepo.ResetFailed(ctx, userID)
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		log.Info().Str("userId", userID).Int64("reset", reset).Msg("failed chunks reset for retry")
	}
	return reset, nil
}

// GetProgress reports per-status counts and completion for a user's chunks.
func (s *BackfillService) GetProgress(ctx context.Context, userID string) (*model.BackfillProgress, error) {
	return s.chunkRepo.Progress(ctx, userID)
}
