package model

import "time"

type HealthMetricRecord struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"userId"`
	MetricDate      time.Time  `db:"metric_date" json:"metricDate"`
	RestingHR       *int       `db:"resting_heart_rate" json:"restingHeartRate,omitempty"`
	SleepHours      *float64   `db:"sleep_hours" json:"sleepHours,omitempty"`
	SleepQuality    *string    `db:"sleep_quality" json:"sleepQuality,omitempty"`
	WeightKg        *float64   `db:"weight_kg" json:"weightKg,omitempty"`
	BodyFatPercent  *float64   `db:"body_fat_percent" json:"bodyFatPercent,omitempty"`
	BodyBattery     *int       `db:"body_battery" json:"bodyBattery,omitempty"`
	StressLevel     *int       `db:"stress_level" json:"stressLevel,omitempty"`
	HRVMilliseconds *int       `db:"hrv_ms" json:"hrvMs,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// HealthMetricUpdate carries only the fields one mapper produced. Nil fields
// are left untouched by the upsert so updates from different data types
// compose on the same row.
type HealthMetricUpdate struct {
	UserID          string
	MetricDate      time.Time
	RestingHR       *int
	SleepHours      *float64
	SleepQuality    *string
	WeightKg        *float64
	BodyFatPercent  *float64
	BodyBattery     *int
	StressLevel     *int
	HRVMilliseconds *int
}

// IsEmpty reports whether no metric field is set.
func (u *HealthMetricUpdate) IsEmpty() bool {
	return u.RestingHR == nil && u.SleepHours == nil && u.SleepQuality == nil &&
		u.WeightKg == nil && u.BodyFatPercent == nil && u.BodyBattery == nil &&
		u.StressLevel == nil && u.HRVMilliseconds == nil
}
