package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stridehub/sync-server-go/internal/config"
	"github.com/stridehub/sync-server-go/internal/garmin"
	"github.com/stridehub/sync-server-go/internal/model"
	"github.com/stridehub/sync-server-go/internal/repository"
)

var (
	ErrCredentialsMissing = errors.New("provider client credentials are not configured")
	ErrNoRefreshToken     = errors.New("integration has no refresh token")
	ErrRefreshRejected    = errors.New("provider rejected the refresh token; account must be reconnected")
	ErrLockContention     = errors.New("another refresh is in flight for this integration")
)

// TokenService keeps access tokens fresh. At most one refresh is ever in
// flight per integration, across processes, enforced by the lease column on
// the integration row.
type TokenService struct {
	cfg             *config.Config
	integrationRepo repository.IntegrationRepository
	api             garmin.API

	// Injectable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

func NewTokenService(cfg *config.Config, integrationRepo repository.IntegrationRepository, api garmin.API) *TokenService {
	return &TokenService{
		cfg:             cfg,
		integrationRepo: integrationRepo,
		api:             api,
		now:             time.Now,
		sleep:           time.Sleep,
	}
}

// EnsureValidAccessToken returns an access token valid for at least the
// configured threshold, refreshing it first when needed. The fast path is
// side-effect free: a token far from expiry is returned without touching the
// store.
func (s *TokenService) EnsureValidAccessToken(ctx context.Context, integration *model.GarminIntegration) (string, error) {
	threshold := s.now().Add(s.cfg.TokenRefreshThreshold())
	if integration.TokenExpiresAt != nil && integration.TokenExpiresAt.After(threshold) && integration.AccessToken != nil {
		return *integration.AccessToken, nil
	}

	// A refresh is due. Fail fast before taking the lease.
	if integration.RefreshTokenInvalid {
		return "", ErrRefreshRejected
	}
	if s.cfg.GarminClientID == "" || s.cfg.GarminClientSecret == "" {
		return "", ErrCredentialsMissing
	}
	if integration.RefreshToken == nil || *integration.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	leaseUntil := s.now().Add(s.cfg.RefreshLease())
	acquired, err := s.integrationRepo.AcquireRefreshLease(ctx, integration.ID, leaseUntil)
	if err != nil {
		return "", fmt.Errorf("failed to acquire refresh lease: %w", err)
	}
	if !acquired {
		return s.awaitOtherRefresher(ctx, integration.ID)
	}

	return s.refresh(ctx, integration)
}

// awaitOtherRefresher handles the lease-held path: wait once, re-read, and
// either adopt the other caller's freshly refreshed token or report
// contention. A refresh is never performed here; the exclusion invariant
// belongs to the lease holder alone.
func (s *TokenService) awaitOtherRefresher(ctx context.Context, integrationID string) (string, error) {
	s.sleep(s.cfg.LockContentionWait())

	updated, err := s.integrationRepo.FindByID(ctx, integrationID)
	if err != nil {
		return "", fmt.Errorf("failed to re-read integration after lease wait: %w", err)
	}
	if updated == nil {
		return "", ErrLockContention
	}

	floor := s.now().Add(config.TokenFreshnessFloor)
	if updated.TokenExpiresAt != nil && updated.TokenExpiresAt.After(floor) && updated.AccessToken != nil {
		log.Debug().Str("integrationId", integrationID).Msg("adopted token refreshed by concurrent caller")
		return *updated.AccessToken, nil
	}

	return "", ErrLockContention
}

func (s *TokenService) refresh(ctx context.Context, integration *model.GarminIntegration) (string, error) {
	resp, err := s.api.RefreshAccessToken(ctx, *integration.RefreshToken)
	if err != nil {
		if errors.Is(err, garmin.ErrTokenRejected) {
			// Terminal: mark the integration so no further automatic
			// refresh burns a dead refresh token.
			if markErr := s.integrationRepo.MarkRefreshTokenInvalid(ctx, integration.ID); markErr != nil {
				log.Error().Err(markErr).Str("integrationId", integration.ID).Msg("failed to mark refresh token invalid")
			}
			log.Warn().Str("integrationId", integration.ID).Str("userId", integration.UserID).
				Msg("refresh token rejected; user must reconnect")
			return "", ErrRefreshRejected
		}

		// Transient: release the lease so the next caller can retry.
		if relErr := s.integrationRepo.ReleaseRefreshLease(ctx, integration.ID); relErr != nil {
			log.Error().Err(relErr).Str("integrationId", integration.ID).Msg("failed to release refresh lease")
		}
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	refreshToken := resp.RefreshToken
	if refreshToken == "" {
		// Provider omitted a rotated refresh token; keep the old one.
		refreshToken = *integration.RefreshToken
	}

	tokens := model.RefreshedTokens{
		AccessToken:    resp.AccessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: s.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
	if resp.RefreshTokenExpiresIn > 0 {
		refreshExpiry := s.now().Add(time.Duration(resp.RefreshTokenExpiresIn) * time.Second)
		tokens.RefreshTokenExpiresAt = &refreshExpiry
	}

	if err := s.integrationRepo.SaveRefreshedTokens(ctx, integration.ID, tokens); err != nil {
		// The provider already rotated the tokens; losing this write
		// silently would leave the store holding a dead refresh token.
		log.Error().Err(err).Str("integrationId", integration.ID).
			Msg("refreshed token could not be persisted")
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	log.Info().Str("integrationId", integration.ID).Str("userId", integration.UserID).
		Time("expiresAt", tokens.TokenExpiresAt).Msg("access token refreshed")

	return resp.AccessToken, nil
}

// EnsureValidAccessTokenForUser is the user-keyed convenience wrapper used by
// handlers and scheduled jobs.
func (s *TokenService) EnsureValidAccessTokenForUser(ctx context.Context, userID string) (string, error) {
	integration, err := s.integrationRepo.FindByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if integration == nil {
		return "", fmt.Errorf("no integration for user %s", userID)
	}
	return s.EnsureValidAccessToken(ctx, integration)
}
