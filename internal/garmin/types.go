package garmin

import "encoding/json"

// Push payload data type keys, as Garmin sends them.
const (
	DataTypeDailies       = "dailies"
	DataTypeSleeps        = "sleeps"
	DataTypeBodyComps     = "bodyComps"
	DataTypeStressDetails = "stressDetails"
	DataTypeHRV           = "hrv"
	DataTypeActivities    = "activities"
)

// PushPayload is the combined webhook body: record batches keyed by data type.
type PushPayload struct {
	Dailies       []json.RawMessage `json:"dailies,omitempty"`
	Sleeps        []json.RawMessage `json:"sleeps,omitempty"`
	BodyComps     []json.RawMessage `json:"bodyComps,omitempty"`
	StressDetails []json.RawMessage `json:"stressDetails,omitempty"`
	HRV           []json.RawMessage `json:"hrv,omitempty"`
	Activities    []json.RawMessage `json:"activities,omitempty"`
}

// Batches returns the non-empty record batches keyed by data type, in a fixed
// processing order.
func (p *PushPayload) Batches() []struct {
	DataType string
	Records  []json.RawMessage
} {
	all := []struct {
		DataType string
		Records  []json.RawMessage
	}{
		{DataTypeDailies, p.Dailies},
		{DataTypeSleeps, p.Sleeps},
		{DataTypeBodyComps, p.BodyComps},
		{DataTypeStressDetails, p.StressDetails},
		{DataTypeHRV, p.HRV},
		{DataTypeActivities, p.Activities},
	}
	var out []struct {
		DataType string
		Records  []json.RawMessage
	}
	for _, b := range all {
		if len(b.Records) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// DailySummary is one record from a "dailies" batch.
type DailySummary struct {
	UserID             string `json:"userId"`
	SummaryID          string `json:"summaryId"`
	CalendarDate       string `json:"calendarDate"`
	RestingHeartRate   *int   `json:"restingHeartRateInBeatsPerMinute"`
	AverageStressLevel *int   `json:"averageStressLevel"`
	Steps              int    `json:"steps"`
	DurationInSeconds  int    `json:"durationInSeconds"`
}

// SleepScore mirrors the provider's qualifier object.
type SleepScore struct {
	QualifierKey string `json:"qualifierKey"`
}

// SleepSummary is one record from a "sleeps" batch.
type SleepSummary struct {
	UserID              string      `json:"userId"`
	SummaryID           string      `json:"summaryId"`
	CalendarDate        string      `json:"calendarDate"`
	DurationInSeconds   *int        `json:"durationInSeconds"`
	DeepSleepInSeconds  *int        `json:"deepSleepDurationInSeconds"`
	LightSleepInSeconds *int        `json:"lightSleepDurationInSeconds"`
	RemSleepInSeconds   *int        `json:"remSleepInSeconds"`
	AwakeInSeconds      *int        `json:"awakeDurationInSeconds"`
	OverallSleepScore   *SleepScore `json:"overallSleepScore"`
}

// BodyComposition is one record from a "bodyComps" batch.
type BodyComposition struct {
	UserID                   string   `json:"userId"`
	SummaryID                string   `json:"summaryId"`
	MeasurementTimeInSeconds int64    `json:"measurementTimeInSeconds"`
	WeightInGrams            *float64 `json:"weightInGrams"`
	BodyFatInPercent         *float64 `json:"bodyFatInPercent"`
}

// StressDetails is one record from a "stressDetails" batch. Body battery
// samples arrive keyed by intraday second offset.
type StressDetails struct {
	UserID                      string         `json:"userId"`
	SummaryID                   string         `json:"summaryId"`
	CalendarDate                string         `json:"calendarDate"`
	AverageStressLevel          *int           `json:"averageStressLevel"`
	TimeOffsetBodyBatteryValues map[string]int `json:"timeOffsetBodyBatteryValues"`
}

// HRVSummary is one record from an "hrv" batch.
type HRVSummary struct {
	UserID       string `json:"userId"`
	SummaryID    string `json:"summaryId"`
	CalendarDate string `json:"calendarDate"`
	LastNightAvg *int   `json:"lastNightAvg"`
}

// ActivitySummary is one record from an "activities" batch.
type ActivitySummary struct {
	UserID             string  `json:"userId"`
	SummaryID          string  `json:"summaryId"`
	ActivityName       string  `json:"activityName"`
	ActivityType       string  `json:"activityType"`
	StartTimeInSeconds int64   `json:"startTimeInSeconds"`
	DurationInSeconds  int     `json:"durationInSeconds"`
	DistanceInMeters   float64 `json:"distanceInMeters"`
	AverageHeartRate   *int    `json:"averageHeartRateInBeatsPerMinute"`
	ActiveKilocalories *int    `json:"activeKilocalories"`
	DeviceName         string  `json:"deviceName"`
	Manual             bool    `json:"manual"`
}
