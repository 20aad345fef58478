package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stridehub/sync-server-go/internal/model"
)

type ActivityRepository interface {
	Create(ctx context.Context, params model.CreateActivityParams) (*model.Activity, error)
	FindByProviderActivityID(ctx context.Context, userID, providerActivityID string) (*model.Activity, error)
	FindByUserAndTimeRange(ctx context.Context, userID string, from, to time.Time) ([]model.Activity, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

type activityRepo struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) ActivityRepository {
	return &activityRepo{db: db}
}

// Create inserts an activity, keeping the full provider payload verbatim.
// Webhook re-delivery of the same activity is a no-op on the unique key;
// the existing row is returned in that case.
func (r *activityRepo) Create(ctx context.Context, params model.CreateActivityParams) (*model.Activity, error) {
	var activity model.Activity
	err := r.db.GetContext(ctx, &activity, `
		INSERT INTO activities (
			user_id, provider_activity_id, name, activity_type, start_time,
			duration_seconds, distance_meters, average_heart_rate, calories, raw_payload
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, provider_activity_id) DO NOTHING
		RETURNING *
	`, params.UserID, params.ProviderActivityID, params.Name, params.ActivityType, params.StartTime,
		params.DurationSeconds, params.DistanceMeters, params.AverageHeartRate, params.Calories, params.RawPayload)
	if result, handledErr := HandleNotFound(&activity, err); handledErr != nil {
		return nil, handledErr
	} else if result != nil {
		return result, nil
	}
	// Conflict: DO NOTHING returned no row, fetch the existing one.
	return r.FindByProviderActivityID(ctx, params.UserID, params.ProviderActivityID)
}

func (r *activityRepo) FindByProviderActivityID(ctx context.Context, userID, providerActivityID string) (*model.Activity, error) {
	var activity model.Activity
	err := r.db.GetContext(ctx, &activity, `
		SELECT * FROM activities WHERE user_id = $1 AND provider_activity_id = $2
	`, userID, providerActivityID)
	return HandleNotFound(&activity, err)
}

func (r *activityRepo) FindByUserAndTimeRange(ctx context.Context, userID string, from, to time.Time) ([]model.Activity, error) {
	var activities []model.Activity
	err := r.db.SelectContext(ctx, &activities, `
		SELECT * FROM activities
		WHERE user_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time DESC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *activityRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM activities WHERE user_id = $1
	`, userID)
	return count, err
}
