package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stridehub/sync-server-go/internal/model"
)

type IntegrationRepository interface {
	FindByID(ctx context.Context, id string) (*model.GarminIntegration, error)
	FindByUserID(ctx context.Context, userID string) (*model.GarminIntegration, error)
	FindByProviderUserID(ctx context.Context, providerUserID string) (*model.GarminIntegration, error)
	Create(ctx context.Context, params model.CreateIntegrationParams) (*model.GarminIntegration, error)
	AcquireRefreshLease(ctx context.Context, id string, until time.Time) (bool, error)
	ReleaseRefreshLease(ctx context.Context, id string) error
	SaveRefreshedTokens(ctx context.Context, id string, tokens model.RefreshedTokens) error
	MarkRefreshTokenInvalid(ctx context.Context, id string) error
	ClearExpiredLeases(ctx context.Context) (int64, error)
}

type integrationRepo struct {
	db *sqlx.DB
}

func NewIntegrationRepository(db *sqlx.DB) IntegrationRepository {
	return &integrationRepo{db: db}
}

func (r *integrationRepo) FindByID(ctx context.Context, id string) (*model.GarminIntegration, error) {
	var integration model.GarminIntegration
	err := r.db.GetContext(ctx, &integration, `
		SELECT * FROM garmin_integrations WHERE id = $1
	`, id)
	return HandleNotFound(&integration, err)
}

func (r *integrationRepo) FindByUserID(ctx context.Context, userID string) (*model.GarminIntegration, error) {
	var integration model.GarminIntegration
	err := r.db.GetContext(ctx, &integration, `
		SELECT * FROM garmin_integrations WHERE user_id = $1
	`, userID)
	return HandleNotFound(&integration, err)
}

func (r *integrationRepo) FindByProviderUserID(ctx context.Context, providerUserID string) (*model.GarminIntegration, error) {
	var integration model.GarminIntegration
	err := r.db.GetContext(ctx, &integration, `
		SELECT * FROM garmin_integrations WHERE provider_user_id = $1
	`, providerUserID)
	return HandleNotFound(&integration, err)
}

func (r *integrationRepo) Create(ctx context.Context, params model.CreateIntegrationParams) (*model.GarminIntegration, error) {
	var integration model.GarminIntegration
	err := r.db.GetContext(ctx, &integration, `
		INSERT INTO garmin_integrations (user_id, provider_user_id, access_token, refresh_token, token_expires_at, refresh_token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.UserID, params.ProviderUserID, params.AccessToken, params.RefreshToken, params.TokenExpiresAt, params.RefreshTokenExpiresAt)
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

// AcquireRefreshLease claims the refresh lease for one integration. The
// conditional WHERE makes the read-then-write atomic at the store: the update
// only wins when no unexpired lease exists, so at most one caller per record
// ever proceeds to refresh, across processes.
func (r *integrationRepo) AcquireRefreshLease(ctx context.Context, id string, until time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE garmin_integrations
		SET refresh_lock_until = $2, updated_at = NOW()
		WHERE id = $1
		  AND (refresh_lock_until IS NULL OR refresh_lock_until < NOW())
	`, id, until)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *integrationRepo) ReleaseRefreshLease(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE garmin_integrations
		SET refresh_lock_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// SaveRefreshedTokens persists a successful refresh, releases the lease and
// clears the invalid flag in one write.
func (r *integrationRepo) SaveRefreshedTokens(ctx context.Context, id string, tokens model.RefreshedTokens) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE garmin_integrations
		SET access_token = $2,
		    refresh_token = $3,
		    token_expires_at = $4,
		    refresh_token_expires_at = $5,
		    refresh_lock_until = NULL,
		    refresh_token_invalid = FALSE,
		    updated_at = NOW()
		WHERE id = $1
	`, id, tokens.AccessToken, tokens.RefreshToken, tokens.TokenExpiresAt, tokens.RefreshTokenExpiresAt)
	return err
}

// MarkRefreshTokenInvalid soft-invalidates the integration after a terminal
// provider rejection. The row survives so the user can reconnect.
func (r *integrationRepo) MarkRefreshTokenInvalid(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE garmin_integrations
		SET refresh_token_invalid = TRUE, refresh_lock_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

// ClearExpiredLeases nulls out leases left behind by crashed refreshers.
// Expired leases are already ignored by AcquireRefreshLease; this is row
// hygiene for the reconcile job.
func (r *integrationRepo) ClearExpiredLeases(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE garmin_integrations
		SET refresh_lock_until = NULL, updated_at = NOW()
		WHERE refresh_lock_until IS NOT NULL AND refresh_lock_until < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
