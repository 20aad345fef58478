package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/stridehub/sync-server-go/internal/model"
)

type ActivationRepository interface {
	// Complete records a milestone, returning true when it was newly
	// completed and false when it had been completed before.
	Complete(ctx context.Context, userID string, step model.ActivationStep) (bool, error)
	FindByUser(ctx context.Context, userID string) ([]model.ActivationRecord, error)
}

type activationRepo struct {
	db *sqlx.DB
}

func NewActivationRepository(db *sqlx.DB) ActivationRepository {
	return &activationRepo{db: db}
}

func (r *activationRepo) Complete(ctx context.Context, userID string, step model.ActivationStep) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO activation_steps (user_id, step)
		VALUES ($1, $2)
		ON CONFLICT (user_id, step) DO NOTHING
	`, userID, step)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *activationRepo) FindByUser(ctx context.Context, userID string) ([]model.ActivationRecord, error) {
	var records []model.ActivationRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM activation_steps
		WHERE user_id = $1
		ORDER BY completed_at ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return records, nil
}
