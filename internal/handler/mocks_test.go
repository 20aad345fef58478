package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/stridehub/sync-server-go/internal/garmin"
	"github.com/stridehub/sync-server-go/internal/model"
)

// Mock integration repository

type mockIntegrationRepo struct {
	mock.Mock
}

func (m *mockIntegrationRepo) FindByID(ctx context.Context, id string) (*model.GarminIntegration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GarminIntegration), args.Error(1)
}

func (m *mockIntegrationRepo) FindByUserID(ctx context.Context, userID string) (*model.GarminIntegration, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GarminIntegration), args.Error(1)
}

func (m *mockIntegrationRepo) FindByProviderUserID(ctx context.Context, providerUserID string) (*model.GarminIntegration, error) {
	args := m.Called(ctx, providerUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GarminIntegration), args.Error(1)
}

func (m *mockIntegrationRepo) Create(ctx context.Context, params model.CreateIntegrationParams) (*model.GarminIntegration, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GarminIntegration), args.Error(1)
}

func (m *mockIntegrationRepo) AcquireRefreshLease(ctx context.Context, id string, until time.Time) (bool, error) {
	args := m.Called(ctx, id, until)
	return args.Bool(0), args.Error(1)
}

func (m *mockIntegrationRepo) ReleaseRefreshLease(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockIntegrationRepo) SaveRefreshedTokens(ctx context.Context, id string, tokens model.RefreshedTokens) error {
	args := m.Called(ctx, id, tokens)
	return args.Error(0)
}

func (m *mockIntegrationRepo) MarkRefreshTokenInvalid(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockIntegrationRepo) ClearExpiredLeases(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Mock backfill chunk repository

type mockChunkRepo struct {
	mock.Mock
}

func (m *mockChunkRepo) CreateChunks(ctx context.Context, chunks []model.CreateChunkParams) (int64, error) {
	args := m.Called(ctx, chunks)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockChunkRepo) FindByID(ctx context.Context, id string) (*model.BackfillChunk, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BackfillChunk), args.Error(1)
}

func (m *mockChunkRepo) FindByUserAndStatuses(ctx context.Context, userID string, statuses ...model.ChunkStatus) ([]model.BackfillChunk, error) {
	callArgs := []any{ctx, userID}
	for _, s := range statuses {
		callArgs = append(callArgs, s)
	}
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BackfillChunk), args.Error(1)
}

func (m *mockChunkRepo) MarkRequested(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockChunkRepo) MarkAlreadyProcessed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockChunkRepo) MarkFailed(ctx context.Context, id string, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *mockChunkRepo) RecordDelivery(ctx context.Context, userID string, eventTS int64) (int64, error) {
	args := m.Called(ctx, userID, eventTS)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockChunkRepo) ResetFailed(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockChunkRepo) MarkStaleReceived(ctx context.Context, maxAge time.Duration) (int64, error) {
	args := m.Called(ctx, maxAge)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockChunkRepo) Progress(ctx context.Context, userID string) (*model.BackfillProgress, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BackfillProgress), args.Error(1)
}

// Mock health metric repository

type mockHealthRepo struct {
	mock.Mock
}

func (m *mockHealthRepo) Upsert(ctx context.Context, update model.HealthMetricUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *mockHealthRepo) FindByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.HealthMetricRecord, error) {
	args := m.Called(ctx, userID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HealthMetricRecord), args.Error(1)
}

func (m *mockHealthRepo) FindByUserSince(ctx context.Context, userID string, since time.Time) ([]model.HealthMetricRecord, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.HealthMetricRecord), args.Error(1)
}

// Mock activity repository

type mockActivityRepo struct {
	mock.Mock
}

func (m *mockActivityRepo) Create(ctx context.Context, params model.CreateActivityParams) (*model.Activity, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Activity), args.Error(1)
}

func (m *mockActivityRepo) FindByProviderActivityID(ctx context.Context, userID, providerActivityID string) (*model.Activity, error) {
	args := m.Called(ctx, userID, providerActivityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Activity), args.Error(1)
}

func (m *mockActivityRepo) FindByUserAndTimeRange(ctx context.Context, userID string, from, to time.Time) ([]model.Activity, error) {
	args := m.Called(ctx, userID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Activity), args.Error(1)
}

func (m *mockActivityRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// Mock activation repository

type mockActivationRepo struct {
	mock.Mock
}

func (m *mockActivationRepo) Complete(ctx context.Context, userID string, step model.ActivationStep) (bool, error) {
	args := m.Called(ctx, userID, step)
	return args.Bool(0), args.Error(1)
}

func (m *mockActivationRepo) FindByUser(ctx context.Context, userID string) ([]model.ActivationRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ActivationRecord), args.Error(1)
}

// Mock insight enqueuer

type mockInsightEnqueuer struct {
	mock.Mock
}

func (m *mockInsightEnqueuer) EnqueueInsightGeneration(ctx context.Context, userID, trigger string) error {
	args := m.Called(ctx, userID, trigger)
	return args.Error(0)
}

// Mock Garmin API

type mockGarminAPI struct {
	mock.Mock
}

func (m *mockGarminAPI) RefreshAccessToken(ctx context.Context, refreshToken string) (*garmin.TokenResponse, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*garmin.TokenResponse), args.Error(1)
}

func (m *mockGarminAPI) RequestBackfill(ctx context.Context, accessToken string, startTS, endTS int64) error {
	args := m.Called(ctx, accessToken, startTS, endTS)
	return args.Error(0)
}
