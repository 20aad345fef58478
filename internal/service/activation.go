package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/stridehub/sync-server-go/internal/model"
	"github.com/stridehub/sync-server-go/internal/repository"
)

// InsightEnqueuer hands completed milestones to the downstream insight
// pipeline.
type InsightEnqueuer interface {
	EnqueueInsightGeneration(ctx context.Context, userID, trigger string) error
}

// ActivationService records onboarding milestones. Completion is idempotent:
// repeating a step is a no-op.
type ActivationService struct {
	activationRepo repository.ActivationRepository
	insights       InsightEnqueuer
}

func NewActivationService(activationRepo repository.ActivationRepository, insights InsightEnqueuer) *ActivationService {
	return &ActivationService{
		activationRepo: activationRepo,
		insights:       insights,
	}
}

// CompleteStep records a milestone and, on first completion, enqueues insight
// generation. The enqueue is best effort: a queue outage must not fail the
// ingestion path that triggered the milestone.
func (s *ActivationService) CompleteStep(ctx context.Context, userID string, step model.ActivationStep) error {
	if !model.ValidActivationStep(step) {
		return fmt.Errorf("unknown activation step: %s", step)
	}

	newlyCompleted, err := s.activationRepo.Complete(ctx, userID, step)
	if err != nil {
		return fmt.Errorf("failed to complete activation step %s: %w", step, err)
	}
	if !newlyCompleted {
		return nil
	}

	log.Info().Str("userId", userID).Str("step", string(step)).Msg("activation step completed")

	if s.insights != nil {
		if err := s.insights.EnqueueInsightGeneration(ctx, userID, string(step)); err != nil {
			log.Warn().Err(err).Str("userId", userID).Str("step", string(step)).
				Msg("failed to enqueue insight generation")
		}
	}
	return nil
}

// Steps lists the milestones a user has completed.
func (s *ActivationService) Steps(ctx context.Context, userID string) ([]model.ActivationRecord, error) {
	return s.activationRepo.FindByUser(ctx, userID)
}
