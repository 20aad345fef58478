package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stridehub/sync-server-go/internal/config"
	"github.com/stridehub/sync-server-go/internal/garmin"
	"github.com/stridehub/sync-server-go/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		GarminClientID:             "client-id",
		GarminClientSecret:         "client-secret",
		TokenRefreshThresholdHours: 6,
		RefreshLeaseSeconds:        30,
		LockContentionWaitSeconds:  3,
		BackfillChunkMonths:        2,
		BackfillMaxYears:           5,
		BackfillRequestGapSeconds:  10,
		StaleChunkAgeHours:         24,
	}
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func newTokenServiceForTest(repo *mockIntegrationRepo, api *mockGarminAPI, now time.Time) (*TokenService, *[]time.Duration) {
	svc := NewTokenService(testConfig(), repo, api)
	svc.now = func() time.Time { return now }
	var slept []time.Duration
	svc.sleep = func(d time.Duration) { slept = append(slept, d) }
	return svc, &slept
}

func freshIntegration(now time.Time) *model.GarminIntegration {
	return &model.GarminIntegration{
		ID:             "int-1",
		UserID:         "user-1",
		ProviderUserID: "garmin-user-1",
		AccessToken:    strPtr("current-access"),
		RefreshToken:   strPtr("current-refresh"),
		TokenExpiresAt: timePtr(now.Add(12 * time.Hour)),
	}
}

func TestEnsureValidAccessToken(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("returns current token without touching the store when far from expiry", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, slept := newTokenServiceForTest(repo, api, now)

		token, err := svc.EnsureValidAccessToken(context.Background(), freshIntegration(now))

		assert.NoError(t, err)
		assert.Equal(t, "current-access", token)
		assert.Empty(t, *slept)
		// No expectations were set; any repo or API call would have panicked.
		repo.AssertExpectations(t)
		api.AssertExpectations(t)
	})

	t.Run("refreshes when token is inside the threshold", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(30 * time.Minute))

		repo.On("AcquireRefreshLease", mock.Anything, "int-1", now.Add(30*time.Second)).Return(true, nil)
		api.On("RefreshAccessToken", mock.Anything, "current-refresh").Return(&garmin.TokenResponse{
			AccessToken:           "new-access",
			RefreshToken:          "new-refresh",
			ExpiresIn:             86400,
			RefreshTokenExpiresIn: 7776000,
		}, nil)
		repo.On("SaveRefreshedTokens", mock.Anything, "int-1", mock.MatchedBy(func(tokens model.RefreshedTokens) bool {
			return tokens.AccessToken == "new-access" &&
				tokens.RefreshToken == "new-refresh" &&
				tokens.TokenExpiresAt.Equal(now.Add(24*time.Hour)) &&
				tokens.RefreshTokenExpiresAt != nil &&
				tokens.RefreshTokenExpiresAt.Equal(now.Add(90*24*time.Hour))
		})).Return(nil)

		token, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.NoError(t, err)
		assert.Equal(t, "new-access", token)
		repo.AssertExpectations(t)
		api.AssertExpectations(t)
	})

	t.Run("refreshes when expiry is unknown", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = nil

		repo.On("AcquireRefreshLease", mock.Anything, "int-1", mock.Anything).Return(true, nil)
		api.On("RefreshAccessToken", mock.Anything, "current-refresh").Return(&garmin.TokenResponse{
			AccessToken: "new-access",
			ExpiresIn:   3600,
		}, nil)
		repo.On("SaveRefreshedTokens", mock.Anything, "int-1", mock.Anything).Return(nil)

		token, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.NoError(t, err)
		assert.Equal(t, "new-access", token)
	})

	t.Run("keeps old refresh token when provider omits a rotated one", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))

		repo.On("AcquireRefreshLease", mock.Anything, "int-1", mock.Anything).Return(true, nil)
		api.On("RefreshAccessToken", mock.Anything, "current-refresh").Return(&garmin.TokenResponse{
			AccessToken: "new-access",
			ExpiresIn:   86400,
		}, nil)
		repo.On("SaveRefreshedTokens", mock.Anything, "int-1", mock.MatchedBy(func(tokens model.RefreshedTokens) bool {
			return tokens.RefreshToken == "current-refresh" && tokens.RefreshTokenExpiresAt == nil
		})).Return(nil)

		_, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("fails without credentials configured", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)
		svc.cfg.GarminClientID = ""

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))

		_, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.ErrorIs(t, err, ErrCredentialsMissing)
		repo.AssertNotCalled(t, "AcquireRefreshLease", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fails without a stored refresh token", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))
		integration.RefreshToken = nil

		_, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.ErrorIs(t, err, ErrNoRefreshToken)
	})

	t.Run("fails fast when the refresh token was already marked invalid", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))
		integration.RefreshTokenInvalid = true

		_, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.ErrorIs(t, err, ErrRefreshRejected)
		api.AssertNotCalled(t, "RefreshAccessToken", mock.Anything, mock.Anything)
	})

	t.Run("marks integration invalid when provider rejects the refresh token", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))

		repo.On("AcquireRefreshLease", mock.Anything, "int-1", mock.Anything).Return(true, nil)
		api.On("RefreshAccessToken", mock.Anything, "current-refresh").Return(nil, garmin.ErrTokenRejected)
		repo.On("MarkRefreshTokenInvalid", mock.Anything, "int-1").Return(nil)

		_, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.ErrorIs(t, err, ErrRefreshRejected)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "ReleaseRefreshLease", mock.Anything, mock.Anything)
	})

	t.Run("releases lease on transient provider failure", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))

		repo.On("AcquireRefreshLease", mock.Anything, "int-1", mock.Anything).Return(true, nil)
		api.On("RefreshAccessToken", mock.Anything, "current-refresh").Return(nil, errors.New("502 bad gateway"))
		repo.On("ReleaseRefreshLease", mock.Anything, "int-1").Return(nil)

		_, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrRefreshRejected)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "MarkRefreshTokenInvalid", mock.Anything, mock.Anything)
	})

	t.Run("surfaces persistence failure after a successful refresh", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))

		repo.On("AcquireRefreshLease", mock.Anything, "int-1", mock.Anything).Return(true, nil)
		api.On("RefreshAccessToken", mock.Anything, "current-refresh").Return(&garmin.TokenResponse{
			AccessToken: "new-access",
			ExpiresIn:   86400,
		}, nil)
		repo.On("SaveRefreshedTokens", mock.Anything, "int-1", mock.Anything).Return(errors.New("connection reset"))

		_, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "persist")
	})
}

func TestEnsureValidAccessTokenContention(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("adopts token refreshed by the lease holder", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, slept := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))

		refreshed := freshIntegration(now)
		refreshed.AccessToken = strPtr("refreshed-by-other")
		refreshed.TokenExpiresAt = timePtr(now.Add(24 * time.Hour))

		repo.On("AcquireRefreshLease", mock.Anything, "int-1", mock.Anything).Return(false, nil)
		repo.On("FindByID", mock.Anything, "int-1").Return(refreshed, nil)

		token, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.NoError(t, err)
		assert.Equal(t, "refreshed-by-other", token)
		assert.Equal(t, []time.Duration{3 * time.Second}, *slept)
		api.AssertNotCalled(t, "RefreshAccessToken", mock.Anything, mock.Anything)
	})

	t.Run("reports contention when the re-read token is still stale", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))

		stillStale := freshIntegration(now)
		stillStale.TokenExpiresAt = timePtr(now.Add(-time.Hour))

		repo.On("AcquireRefreshLease", mock.Anything, "int-1", mock.Anything).Return(false, nil)
		repo.On("FindByID", mock.Anything, "int-1").Return(stillStale, nil)

		_, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.ErrorIs(t, err, ErrLockContention)
		api.AssertNotCalled(t, "RefreshAccessToken", mock.Anything, mock.Anything)
	})

	t.Run("rejects a token expiring within the freshness floor", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		integration := freshIntegration(now)
		integration.TokenExpiresAt = timePtr(now.Add(-time.Hour))

		almostExpired := freshIntegration(now)
		almostExpired.TokenExpiresAt = timePtr(now.Add(30 * time.Second))

		repo.On("AcquireRefreshLease", mock.Anything, "int-1", mock.Anything).Return(false, nil)
		repo.On("FindByID", mock.Anything, "int-1").Return(almostExpired, nil)

		_, err := svc.EnsureValidAccessToken(context.Background(), integration)

		assert.ErrorIs(t, err, ErrLockContention)
	})
}

func TestEnsureValidAccessTokenForUser(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("resolves the integration by user ID", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		repo.On("FindByUserID", mock.Anything, "user-1").Return(freshIntegration(now), nil)

		token, err := svc.EnsureValidAccessTokenForUser(context.Background(), "user-1")

		assert.NoError(t, err)
		assert.Equal(t, "current-access", token)
	})

	t.Run("fails when the user has no integration", func(t *testing.T) {
		repo := new(mockIntegrationRepo)
		api := new(mockGarminAPI)
		svc, _ := newTokenServiceForTest(repo, api, now)

		repo.On("FindByUserID", mock.Anything, "user-2").Return(nil, nil)

		_, err := svc.EnsureValidAccessTokenForUser(context.Background(), "user-2")

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no integration")
	})
}
