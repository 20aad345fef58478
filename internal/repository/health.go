package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/stridehub/sync-server-go/internal/model"
)

type HealthMetricRepository interface {
	Upsert(ctx context.Context, update model.HealthMetricUpdate) error
	FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.HealthMetricRecord, error)
	FindByUserSince(ctx context.Context, userID string, since time.Time) ([]model.HealthMetricRecord, error)
}

type healthMetricRepo struct {
	db *sqlx.DB
}

func NewHealthMetricRepository(db *sqlx.DB) HealthMetricRepository {
	return &healthMetricRepo{db: db}
}

// Upsert merges one mapper's fields into the (user, date) row. COALESCE keeps
// every column a later data type did not provide, so partial updates from
// dailies, sleeps and body comps compose instead of clobbering each other.
func (r *healthMetricRepo) Upsert(ctx context.Context, update model.HealthMetricUpdate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO health_metrics (
			user_id, metric_date, resting_heart_rate, sleep_hours, sleep_quality,
			weight_kg, body_fat_percent, body_battery, stress_level, hrv_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, metric_date) DO UPDATE SET
			resting_heart_rate = COALESCE(EXCLUDED.resting_heart_rate, health_metrics.resting_heart_rate),
			sleep_hours        = COALESCE(EXCLUDED.sleep_hours, health_metrics.sleep_hours),
			sleep_quality      = COALESCE(EXCLUDED.sleep_quality, health_metrics.sleep_quality),
			weight_kg          = COALESCE(EXCLUDED.weight_kg, health_metrics.weight_kg),
			body_fat_percent   = COALESCE(EXCLUDED.body_fat_percent, health_metrics.body_fat_percent),
			body_battery       = COALESCE(EXCLUDED.body_battery, health_metrics.body_battery),
			stress_level       = COALESCE(EXCLUDED.stress_level, health_metrics.stress_level),
			hrv_ms             = COALESCE(EXCLUDED.hrv_ms, health_metrics.hrv_ms),
			updated_at         = NOW()
	`, update.UserID, update.MetricDate, update.RestingHR, update.SleepHours, update.SleepQuality,
		update.WeightKg, update.BodyFatPercent, update.BodyBattery, update.StressLevel, update.HRVMilliseconds)
	return err
}

func (r *healthMetricRepo) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.HealthMetricRecord, error) {
	var record model.HealthMetricRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT * FROM health_metrics WHERE user_id = $1 AND metric_date = $2
	`, userID, date)
	return HandleNotFound(&record, err)
}

func (r *healthMetricRepo) FindByUserSince(ctx context.Context, userID string, since time.Time) ([]model.HealthMetricRecord, error) {
	var records []model.HealthMetricRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT * FROM health_metrics
		WHERE user_id = $1 AND metric_date >= $2
		ORDER BY metric_date DESC
	`, userID, since)
	if err != nil {
		return nil, err
	}
	return records, nil
}
