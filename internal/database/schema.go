package database

// Schema contains all SQL statements for creating tables and indexes.
const Schema = `
-- Garmin integrations: one row per connected (user, provider) account
CREATE TABLE IF NOT EXISTS garmin_integrations (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    provider_user_id TEXT NOT NULL,

    -- OAuth tokens
    access_token TEXT,
    refresh_token TEXT,
    token_expires_at TIMESTAMPTZ,
    refresh_token_expires_at TIMESTAMPTZ,

    -- Refresh lease: an unexpired value means a refresh is in flight
    refresh_lock_until TIMESTAMPTZ,
    refresh_token_invalid BOOLEAN NOT NULL DEFAULT FALSE,

    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (user_id),
    UNIQUE (provider_user_id)
);

-- Backfill chunks: one row per (user, time window), generated up front
CREATE TABLE IF NOT EXISTS backfill_chunks (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    chunk_start DATE NOT NULL,
    chunk_end DATE NOT NULL,
    start_ts BIGINT NOT NULL,
    end_ts BIGINT NOT NULL,

    status TEXT NOT NULL DEFAULT 'pending',
    activity_count INTEGER NOT NULL DEFAULT 0,
    retry_count INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    requested_at TIMESTAMPTZ,
    received_at TIMESTAMPTZ,

    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (user_id, chunk_start, chunk_end)
);

CREATE INDEX IF NOT EXISTS idx_backfill_chunks_user_status ON backfill_chunks(user_id, status);
CREATE INDEX IF NOT EXISTS idx_backfill_chunks_requested_at ON backfill_chunks(requested_at) WHERE status = 'requested';

-- Health metrics: one row per (user, calendar date), merged across data types
CREATE TABLE IF NOT EXISTS health_metrics (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    metric_date DATE NOT NULL,

    resting_heart_rate INTEGER,
    sleep_hours DOUBLE PRECISION,
    sleep_quality TEXT,
    weight_kg DOUBLE PRECISION,
    body_fat_percent DOUBLE PRECISION,
    body_battery INTEGER,
    stress_level INTEGER,
    hrv_ms INTEGER,

    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (user_id, metric_date)
);

CREATE INDEX IF NOT EXISTS idx_health_metrics_user_date ON health_metrics(user_id, metric_date DESC);

-- Activities: normalized fields plus the provider payload verbatim
CREATE TABLE IF NOT EXISTS activities (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    provider_activity_id TEXT NOT NULL,

    name TEXT NOT NULL,
    activity_type TEXT NOT NULL,
    start_time TIMESTAMPTZ NOT NULL,
    duration_seconds INTEGER NOT NULL DEFAULT 0,
    distance_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
    average_heart_rate INTEGER,
    calories INTEGER,

    raw_payload JSONB NOT NULL,

    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (user_id, provider_activity_id)
);

CREATE INDEX IF NOT EXISTS idx_activities_user_start ON activities(user_id, start_time DESC);

-- Activation steps: one row per completed onboarding milestone
CREATE TABLE IF NOT EXISTS activation_steps (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL,
    step TEXT NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE (user_id, step)
);
`
