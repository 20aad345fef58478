package model

import (
	"encoding/json"
	"time"
)

// Internal activity taxonomy. Provider-specific type strings are normalized
// to one of these before storage.
type ActivityType string

const (
	ActivityTypeRun      ActivityType = "run"
	ActivityTypeRide     ActivityType = "ride"
	ActivityTypeSwim     ActivityType = "swim"
	ActivityTypeWalk     ActivityType = "walk"
	ActivityTypeHike     ActivityType = "hike"
	ActivityTypeStrength ActivityType = "strength"
	ActivityTypeCardio   ActivityType = "cardio"
	ActivityTypeYoga     ActivityType = "yoga"
	ActivityTypeOther    ActivityType = "other"
)

type Activity struct {
	ID                 string          `db:"id" json:"id"`
	UserID             string          `db:"user_id" json:"userId"`
	ProviderActivityID string          `db:"provider_activity_id" json:"providerActivityId"`
	Name               string          `db:"name" json:"name"`
	ActivityType       ActivityType    `db:"activity_type" json:"activityType"`
	StartTime          time.Time       `db:"start_time" json:"startTime"`
	DurationSeconds    int             `db:"duration_seconds" json:"durationSeconds"`
	DistanceMeters     float64         `db:"distance_meters" json:"distanceMeters"`
	AverageHeartRate   *int            `db:"average_heart_rate" json:"averageHeartRate,omitempty"`
	Calories           *int            `db:"calories" json:"calories,omitempty"`
	RawPayload         json.RawMessage `db:"raw_payload" json:"-"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
}

type CreateActivityParams struct {
	UserID             string
	ProviderActivityID string
	Name               string
	ActivityType       ActivityType
	StartTime          time.Time
	DurationSeconds    int
	DistanceMeters     float64
	AverageHeartRate   *int
	Calories           *int
	RawPayload         json.RawMessage
}
