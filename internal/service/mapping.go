package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/stridehub/sync-server-go/internal/garmin"
	"github.com/stridehub/sync-server-go/internal/model"
)

const calendarDateLayout = "2006-01-02"

func parseCalendarDate(s string) (time.Time, error) {
	t, err := time.Parse(calendarDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid calendar date %q: %w", s, err)
	}
	return t, nil
}

// Plausibility bounds. Values outside these ranges are dropped rather than
// stored; the provider occasionally sends zeroed or garbage fields.
const (
	minRestingHR  = 25
	maxRestingHR  = 130
	maxSleepHours = 24.0
	minWeightKg   = 20.0
	maxWeightKg   = 400.0
	minBodyFatPct = 2.0
	maxBodyFatPct = 75.0
	minHRVMs      = 10
	maxHRVMs      = 300
)

// rescaleStress maps the provider's 0-100 stress scale onto the internal 1-5
// scale: value/20, rounded, clamped to at least 1.
func rescaleStress(level int) int {
	scaled := int(math.Round(float64(level) / 20.0))
	if scaled < 1 {
		scaled = 1
	}
	if scaled > 5 {
		scaled = 5
	}
	return scaled
}

// latestBodyBattery picks the most recent of the intraday samples, keyed by
// second-of-day offset.
func latestBodyBattery(samples map[string]int) *int {
	var (
		bestOffset = int64(-1)
		bestValue  int
	)
	for key, value := range samples {
		offset, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		if offset > bestOffset {
			bestOffset = offset
			bestValue = value
		}
	}
	if bestOffset < 0 {
		return nil
	}
	if bestValue < 0 || bestValue > 100 {
		return nil
	}
	return &bestValue
}

func mapDailySummary(rec *garmin.DailySummary) (*model.HealthMetricUpdate, error) {
	date, err := parseCalendarDate(rec.CalendarDate)
	if err != nil {
		return nil, err
	}
	update := &model.HealthMetricUpdate{MetricDate: date}
	if rec.RestingHeartRate != nil && *rec.RestingHeartRate >= minRestingHR && *rec.RestingHeartRate <= maxRestingHR {
		update.RestingHR = rec.RestingHeartRate
	}
	if rec.AverageStressLevel != nil && *rec.AverageStressLevel >= 0 && *rec.AverageStressLevel <= 100 {
		stress := rescaleStress(*rec.AverageStressLevel)
		update.StressLevel = &stress
	}
	return update, nil
}

func mapSleepSummary(rec *garmin.SleepSummary) (*model.HealthMetricUpdate, error) {
	date, err := parseCalendarDate(rec.CalendarDate)
	if err != nil {
		return nil, err
	}
	update := &model.HealthMetricUpdate{MetricDate: date}
	if rec.DurationInSeconds != nil {
		hours := float64(*rec.DurationInSeconds) / 3600.0
		if hours > 0 && hours <= maxSleepHours {
			update.SleepHours = &hours
		}
	}
	if rec.OverallSleepScore != nil && rec.OverallSleepScore.QualifierKey != "" {
		quality := strings.ToLower(rec.OverallSleepScore.QualifierKey)
		update.SleepQuality = &quality
	}
	return update, nil
}

func mapBodyComposition(rec *garmin.BodyComposition) (*model.HealthMetricUpdate, error) {
	if rec.MeasurementTimeInSeconds <= 0 {
		return nil, fmt.Errorf("body composition record has no measurement time")
	}
	date := time.Unix(rec.MeasurementTimeInSeconds, 0).UTC().Truncate(24 * time.Hour)
	update := &model.HealthMetricUpdate{MetricDate: date}
	if rec.WeightInGrams != nil {
		kg := *rec.WeightInGrams / 1000.0
		if kg >= minWeightKg && kg <= maxWeightKg {
			update.WeightKg = &kg
		}
	}
	if rec.BodyFatInPercent != nil && *rec.BodyFatInPercent >= minBodyFatPct && *rec.BodyFatInPercent <= maxBodyFatPct {
		update.BodyFatPercent = rec.BodyFatInPercent
	}
	return update, nil
}

func mapStressDetails(rec *garmin.StressDetails) (*model.HealthMetricUpdate, error) {
	date, err := parseCalendarDate(rec.CalendarDate)
	if err != nil {
		return nil, err
	}
	update := &model.HealthMetricUpdate{MetricDate: date}
	if rec.AverageStressLevel != nil && *rec.AverageStressLevel >= 0 && *rec.AverageStressLevel <= 100 {
		stress := rescaleStress(*rec.AverageStressLevel)
		update.StressLevel = &stress
	}
	update.BodyBattery = latestBodyBattery(rec.TimeOffsetBodyBatteryValues)
	return update, nil
}

func mapHRVSummary(rec *garmin.HRVSummary) (*model.HealthMetricUpdate, error) {
	date, err := parseCalendarDate(rec.CalendarDate)
	if err != nil {
		return nil, err
	}
	update := &model.HealthMetricUpdate{MetricDate: date}
	if rec.LastNightAvg != nil && *rec.LastNightAvg >= minHRVMs && *rec.LastNightAvg <= maxHRVMs {
		update.HRVMilliseconds = rec.LastNightAvg
	}
	return update, nil
}

// activityTypeMappings normalizes provider activity-type strings onto the
// internal taxonomy. Evaluated top to bottom; first match wins. Substring
// entries catch the provider's many compound variants
// (TRAIL_RUNNING, INDOOR_CYCLING, OPEN_WATER_SWIMMING, ...).
var activityTypeMappings = []struct {
	match    string
	internal model.ActivityType
}{
	{"RUNNING", model.ActivityTypeRun},
	{"TREADMILL", model.ActivityTypeRun},
	{"CYCLING", model.ActivityTypeRide},
	{"BIKING", model.ActivityTypeRide},
	{"SWIMMING", model.ActivityTypeSwim},
	{"HIKING", model.ActivityTypeHike},
	{"WALKING", model.ActivityTypeWalk},
	{"STRENGTH", model.ActivityTypeStrength},
	{"YOGA", model.ActivityTypeYoga},
	{"PILATES", model.ActivityTypeYoga},
	{"ELLIPTICAL", model.ActivityTypeCardio},
	{"CARDIO", model.ActivityTypeCardio},
	{"ROWING", model.ActivityTypeCardio},
	{"STAIR", model.ActivityTypeCardio},
}

func normalizeActivityType(providerType string) model.ActivityType {
	upper := strings.ToUpper(strings.TrimSpace(providerType))
	for _, m := range activityTypeMappings {
		if strings.Contains(upper, m.match) {
			return m.internal
		}
	}
	return model.ActivityTypeOther
}

// pseudoActivityTypes are health/monitoring records the provider reports as
// activities. They belong in health metrics, never in activity storage.
var pseudoActivityTypes = map[string]bool{
	"SLEEP":           true,
	"SEDENTARY":       true,
	"MEDITATION":      true,
	"BREATHWORK":      true,
	"RESPIRATION":     true,
	"MONITORING":      true,
	"HEALTH_SNAPSHOT": true,
	"UNCATEGORIZED":   true,
}

const (
	minActivityDurationSeconds = 60
	minActivityDistanceMeters  = 10.0
)

// shouldStoreActivity applies the minimum-metrics filter: explicit
// health/monitoring pseudo-activities and auto-detected near-zero movements
// never reach activity storage.
func shouldStoreActivity(rec *garmin.ActivitySummary) bool {
	upper := strings.ToUpper(strings.TrimSpace(rec.ActivityType))
	if pseudoActivityTypes[upper] {
		return false
	}
	if !rec.Manual && rec.DurationInSeconds < minActivityDurationSeconds && rec.DistanceInMeters < minActivityDistanceMeters {
		return false
	}
	return true
}

// activityNameCandidates is the ordered fallback table for a human-readable
// activity name: the provider sends the concept under several fields, or not
// at all.
var activityNameCandidates = []func(*garmin.ActivitySummary) string{
	func(rec *garmin.ActivitySummary) string { return strings.TrimSpace(rec.ActivityName) },
	func(rec *garmin.ActivitySummary) string {
		if rec.DeviceName == "" {
			return ""
		}
		return fmt.Sprintf("%s (%s)", titleForType(rec.ActivityType), rec.DeviceName)
	},
	func(rec *garmin.ActivitySummary) string { return synthesizeActivityName(rec) },
}

func activityName(rec *garmin.ActivitySummary) string {
	for _, candidate := range activityNameCandidates {
		if name := candidate(rec); name != "" {
			return name
		}
	}
	return "Activity"
}

func titleForType(providerType string) string {
	cleaned := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(providerType)), "_", " ")
	if cleaned == "" {
		return "Activity"
	}
	words := strings.Fields(cleaned)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// synthesizeActivityName builds "Morning Run" style names from the start
// time and normalized type.
func synthesizeActivityName(rec *garmin.ActivitySummary) string {
	start := time.Unix(rec.StartTimeInSeconds, 0).UTC()
	var period string
	switch hour := start.Hour(); {
	case hour < 5:
		period = "Night"
	case hour < 12:
		period = "Morning"
	case hour < 17:
		period = "Afternoon"
	default:
		period = "Evening"
	}
	return fmt.Sprintf("%s %s", period, titleForType(rec.ActivityType))
}

func mapActivity(userID string, rec *garmin.ActivitySummary, raw []byte) model.CreateActivityParams {
	return model.CreateActivityParams{
		UserID:             userID,
		ProviderActivityID: rec.SummaryID,
		Name:               activityName(rec),
		ActivityType:       normalizeActivityType(rec.ActivityType),
		StartTime:          time.Unix(rec.StartTimeInSeconds, 0).UTC(),
		DurationSeconds:    rec.DurationInSeconds,
		DistanceMeters:     rec.DistanceInMeters,
		AverageHeartRate:   rec.AverageHeartRate,
		Calories:           rec.ActiveKilocalories,
		RawPayload:         raw,
	}
}
