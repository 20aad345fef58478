package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/stridehub/sync-server-go/internal/garmin"
	"github.com/stridehub/sync-server-go/internal/model"
	"github.com/stridehub/sync-server-go/internal/repository"
)

// RecordResult reports the outcome of one record within a push batch.
type RecordResult struct {
	Index  int    `json:"index"`
	Status string `json:"status"` // processed, skipped, error
	Reason string `json:"reason,omitempty"`
}

// BatchResult aggregates one push batch.
type BatchResult struct {
	DataType  string         `json:"dataType"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Results   []RecordResult `json:"results"`
}

// IngestService turns asynchronously pushed provider batches into health
// metric and activity rows. Records are processed independently; the provider
// delivers hundreds per call and one bad record must never sink the batch.
type IngestService struct {
	integrationRepo repository.IntegrationRepository
	healthRepo      repository.HealthMetricRepository
	activityRepo    repository.ActivityRepository
	backfillSvc     *BackfillService
	activationSvc   *ActivationService
}

func NewIngestService(
	integrationRepo repository.IntegrationRepository,
	healthRepo repository.HealthMetricRepository,
	activityRepo repository.ActivityRepository,
	backfillSvc *BackfillService,
	activationSvc *ActivationService,
) *IngestService {
	return &IngestService{
		integrationRepo: integrationRepo,
		healthRepo:      healthRepo,
		activityRepo:    activityRepo,
		backfillSvc:     backfillSvc,
		activationSvc:   activationSvc,
	}
}

// ProcessPushBatch processes one data-type batch from a webhook delivery.
// Failures are isolated per record and reported in the result, never
// propagated as a batch error.
func (s *IngestService) ProcessPushBatch(ctx context.Context, dataType string, records []json.RawMessage) (*BatchResult, error) {
	result := &BatchResult{DataType: dataType}

	for i, raw := range records {
		status, reason := s.processRecord(ctx, dataType, raw)
		result.Results = append(result.Results, RecordResult{Index: i, Status: status, Reason: reason})
		if status == "processed" {
			result.Processed++
		} else {
			result.Skipped++
		}
	}

	log.Info().Str("dataType", dataType).
		Int("processed", result.Processed).
		Int("skipped", result.Skipped).
		Msg("push batch processed")

	return result, nil
}

func (s *IngestService) processRecord(ctx context.Context, dataType string, raw json.RawMessage) (status, reason string) {
	var err error
	switch dataType {
	case garmin.DataTypeDailies:
		status, reason, err = s.processHealthRecord(ctx, raw, func(r json.RawMessage) (string, *model.HealthMetricUpdate, error) {
			var rec garmin.DailySummary
			if err := json.Unmarshal(r, &rec); err != nil {
				return "", nil, err
			}
			update, err := mapDailySummary(&rec)
			return rec.UserID, update, err
		})
	case garmin.DataTypeSleeps:
		status, reason, err = s.processHealthRecord(ctx, raw, func(r json.RawMessage) (string, *model.HealthMetricUpdate, error) {
			var rec garmin.SleepSummary
			if err := json.Unmarshal(r, &rec); err != nil {
				return "", nil, err
			}
			update, err := mapSleepSummary(&rec)
			return rec.UserID, update, err
		})
	case garmin.DataTypeBodyComps:
		status, reason, err = s.processHealthRecord(ctx, raw, func(r json.RawMessage) (string, *model.HealthMetricUpdate, error) {
			var rec garmin.BodyComposition
			if err := json.Unmarshal(r, &rec); err != nil {
				return "", nil, err
			}
			update, err := mapBodyComposition(&rec)
			return rec.UserID, update, err
		})
	case garmin.DataTypeStressDetails:
		status, reason, err = s.processHealthRecord(ctx, raw, func(r json.RawMessage) (string, *model.HealthMetricUpdate, error) {
			var rec garmin.StressDetails
			if err := json.Unmarshal(r, &rec); err != nil {
				return "", nil, err
			}
			update, err := mapStressDetails(&rec)
			return rec.UserID, update, err
		})
	case garmin.DataTypeHRV:
		status, reason, err = s.processHealthRecord(ctx, raw, func(r json.RawMessage) (string, *model.HealthMetricUpdate, error) {
			var rec garmin.HRVSummary
			if err := json.Unmarshal(r, &rec); err != nil {
				return "", nil, err
			}
			update, err := mapHRVSummary(&rec)
			return rec.UserID, update, err
		})
	case garmin.DataTypeActivities:
		status, reason, err = s.processActivityRecord(ctx, raw)
	default:
		return "skipped", fmt.Sprintf("unknown data type %q", dataType)
	}

	if err != nil {
		log.Warn().Err(err).Str("dataType", dataType).Msg("record processing failed")
		return "error", err.Error()
	}
	return status, reason
}

type healthMapper func(json.RawMessage) (providerUserID string, update *model.HealthMetricUpdate, err error)

func (s *IngestService) processHealthRecord(ctx context.Context, raw json.RawMessage, mapRecord healthMapper) (string, string, error) {
	providerUserID, update, err := mapRecord(raw)
	if err != nil {
		return "", "", err
	}

	userID, err := s.resolveUser(ctx, providerUserID)
	if err != nil {
		return "", "", err
	}
	if userID == "" {
		return "skipped", "no integration", nil
	}

	if update.IsEmpty() {
		return "skipped", "no usable fields", nil
	}
	update.UserID = userID

	if err := s.healthRepo.Upsert(ctx, *update); err != nil {
		return "", "", fmt.Errorf("health metric upsert failed: %w", err)
	}

	if err := s.activationSvc.CompleteStep(ctx, userID, model.StepFirstSync); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to record first_sync step")
	}

	return "processed", "", nil
}

func (s *IngestService) processActivityRecord(ctx context.Context, raw json.RawMessage) (string, string, error) {
	var rec garmin.ActivitySummary
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", "", err
	}
	if rec.SummaryID == "" {
		return "", "", fmt.Errorf("activity record has no summaryId")
	}
	if rec.StartTimeInSeconds <= 0 {
		return "", "", fmt.Errorf("activity record has no start time")
	}

	userID, err := s.resolveUser(ctx, rec.UserID)
	if err != nil {
		return "", "", err
	}
	if userID == "" {
		return "skipped", "no integration", nil
	}

	// Chunk bookkeeping happens for every delivered activity, including
	// ones the storage filter later discards: the chunk window did produce
	// data either way.
	if err := s.backfillSvc.RecordDelivery(ctx, userID, rec.StartTimeInSeconds); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to reconcile chunk delivery")
	}

	if err := s.ExtractHealthMetricsFromActivity(ctx, userID, &rec); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to derive health metrics from activity")
	}

	if !shouldStoreActivity(&rec) {
		return "skipped", "filtered", nil
	}

	if _, err := s.activityRepo.Create(ctx, mapActivity(userID, &rec, raw)); err != nil {
		return "", "", fmt.Errorf("activity insert failed: %w", err)
	}

	if err := s.activationSvc.CompleteStep(ctx, userID, model.StepFirstSync); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to record first_sync step")
	}

	return "processed", "", nil
}

// ExtractHealthMetricsFromActivity opportunistically derives metric fields
// from ordinary activity payloads when explicit health-summary push data has
// not arrived. A sedentary or monitoring record's heart rate is as good a
// resting-HR reading as a daily summary's.
func (s *IngestService) ExtractHealthMetricsFromActivity(ctx context.Context, userID string, rec *garmin.ActivitySummary) error {
	upper := strings.ToUpper(strings.TrimSpace(rec.ActivityType))
	lowIntensity := upper == "SEDENTARY" || upper == "MONITORING" || upper == "SLEEP"
	if !lowIntensity {
		return nil
	}
	if rec.AverageHeartRate == nil {
		return nil
	}
	hr := *rec.AverageHeartRate
	if hr < minRestingHR || hr > maxRestingHR {
		return nil
	}

	date := time.Unix(rec.StartTimeInSeconds, 0).UTC().Truncate(24 * time.Hour)
	return s.healthRepo.Upsert(ctx, model.HealthMetricUpdate{
		UserID:     userID,
		MetricDate: date,
		RestingHR:  &hr,
	})
}

// resolveUser maps the provider's user identifier to a local user ID.
// Empty result means no integration is connected for that identifier.
func (s *IngestService) resolveUser(ctx context.Context, providerUserID string) (string, error) {
	if providerUserID == "" {
		return "", fmt.Errorf("record has no userId")
	}
	integration, err := s.integrationRepo.FindByProviderUserID(ctx, providerUserID)
	if err != nil {
		return "", fmt.Errorf("integration lookup failed: %w", err)
	}
	if integration == nil {
		return "", nil
	}
	return integration.UserID, nil
}
