package model

import "time"

type ChunkStatus string

const (
	ChunkStatusPending          ChunkStatus = "pending"
	ChunkStatusRequested        ChunkStatus = "requested"
	ChunkStatusReceived         ChunkStatus = "received"
	ChunkStatusAlreadyProcessed ChunkStatus = "already_processed"
	ChunkStatusFailed           ChunkStatus = "failed"
)

type BackfillChunk struct {
	ID            string      `db:"id" json:"id"`
	UserID        string      `db:"user_id" json:"userId"`
	ChunkStart    time.Time   `db:"chunk_start" json:"chunkStart"`
	ChunkEnd      time.Time   `db:"chunk_end" json:"chunkEnd"`
	StartTS       int64       `db:"start_ts" json:"startTimestamp"`
	EndTS         int64       `db:"end_ts" json:"endTimestamp"`
	Status        ChunkStatus `db:"status" json:"status"`
	ActivityCount int         `db:"activity_count" json:"activityCount"`
	RetryCount    int         `db:"retry_count" json:"retryCount"`
	ErrorMessage  *string     `db:"error_message" json:"errorMessage,omitempty"`
	RequestedAt   *time.Time  `db:"requested_at" json:"requestedAt,omitempty"`
	ReceivedAt    *time.Time  `db:"received_at" json:"receivedAt,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updatedAt"`
}

type CreateChunkParams struct {
	UserID     string
	ChunkStart time.Time
	ChunkEnd   time.Time
	StartTS    int64
	EndTS      int64
}

// ChunkError describes a single chunk's request failure within a backfill run.
type ChunkError struct {
	ChunkID string `json:"chunkId"`
	StartTS int64  `json:"startTimestamp"`
	EndTS   int64  `json:"endTimestamp"`
	Message string `json:"message"`
}

// BackfillSummary aggregates the outcome of one request loop.
type BackfillSummary struct {
	RunID            string       `json:"runId"`
	TotalChunks      int          `json:"totalChunks"`
	Requested        int          `json:"requested"`
	AlreadyProcessed int          `json:"alreadyProcessed"`
	Failed           int          `json:"failed"`
	Incomplete       bool         `json:"incomplete,omitempty"`
	Errors           []ChunkError `json:"errors,omitempty"`
}

// BackfillProgress reports per-status counts for a user's chunks.
type BackfillProgress struct {
	Total            int     `json:"total"`
	Pending          int     `json:"pending"`
	Requested        int     `json:"requested"`
	Received         int     `json:"received"`
	AlreadyProcessed int     `json:"alreadyProcessed"`
	Failed           int     `json:"failed"`
	PercentComplete  float64 `json:"percentComplete"`
}
