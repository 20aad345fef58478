package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/stridehub/sync-server-go/internal/garmin"
	"github.com/stridehub/sync-server-go/internal/service"
)

// WebhookHandler receives asynchronously pushed provider batches. Handled
// deliveries always get a 200: per-record failures are internal, and a non-2xx
// would make the provider redeliver the whole batch indefinitely.
type WebhookHandler struct {
	ingestService *service.IngestService
}

func NewWebhookHandler(ingestService *service.IngestService) *WebhookHandler {
	return &WebhookHandler{ingestService: ingestService}
}

// Push handles the combined payload: record batches keyed by data type.
func (h *WebhookHandler) Push(w http.ResponseWriter, r *http.Request) {
	var payload garmin.PushPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("invalid webhook payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	ctx := r.Context()
	var results []*service.BatchResult
	for _, batch := range payload.Batches() {
		result, err := h.ingestService.ProcessPushBatch(ctx, batch.DataType, batch.Records)
		if err != nil {
			log.Error().Err(err).Str("dataType", batch.DataType).Msg("failed to process push batch")
			continue
		}
		results = append(results, result)
	}

	writeJSON(w, http.StatusOK, map[string]any{"batches": results})
}

// PushByType handles a single-type delivery: the URL names the data type and
// the body is a bare record array.
func (h *WebhookHandler) PushByType(w http.ResponseWriter, r *http.Request) {
	dataType := chi.URLParam(r, "dataType")

	var records []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		log.Warn().Err(err).Str("dataType", dataType).Msg("invalid webhook payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := h.ingestService.ProcessPushBatch(r.Context(), dataType, records)
	if err != nil {
		log.Error().Err(err).Str("dataType", dataType).Msg("failed to process push batch")
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}
