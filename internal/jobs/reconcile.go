package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stridehub/sync-server-go/internal/repository"
)

// ReconcileJob periodically closes out the loose ends the push-based provider
// leaves behind: requested chunks that went quiet, and refresh leases whose
// holders crashed.
type ReconcileJob struct {
	chunkRepo       repository.BackfillChunkRepository
	integrationRepo repository.IntegrationRepository
	staleChunkAge   time.Duration
	interval        time.Duration
	done            chan struct{}
}

func NewReconcileJob(
	chunkRepo repository.BackfillChunkRepository,
	integrationRepo repository.IntegrationRepository,
	staleChunkAge time.Duration,
	interval time.Duration,
) *ReconcileJob {
	return &ReconcileJob{
		chunkRepo:       chunkRepo,
		integrationRepo: integrationRepo,
		staleChunkAge:   staleChunkAge,
		interval:        interval,
		done:            make(chan struct{}),
	}
}

func (j *ReconcileJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("reconcile job started")
}

func (j *ReconcileJob) Stop() {
	close(j.done)
	log.Info().Msg("reconcile job stopped")
}

func (j *ReconcileJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.reconcile()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.reconcile()
		}
	}
}

func (j *ReconcileJob) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runStep(ctx, "stale chunks", func(ctx context.Context) (int64, error) {
		// A chunk still requested after the stale age means the provider
		// has nothing more to push for that window.
		return j.chunkRepo.MarkStaleReceived(ctx, j.staleChunkAge)
	})
	j.runStep(ctx, "expired refresh leases", j.integrationRepo.ClearExpiredLeases)
}

func (j *ReconcileJob) runStep(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to reconcile %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("reconciled %s", name)
	}
}
