package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/stridehub/sync-server-go/internal/errors"
	"github.com/stridehub/sync-server-go/internal/model"
	"github.com/stridehub/sync-server-go/internal/service"
)

type BackfillHandler struct {
	backfillService   *service.BackfillService
	tokenService      *service.TokenService
	activationService *service.ActivationService
}

func NewBackfillHandler(
	backfillService *service.BackfillService,
	tokenService *service.TokenService,
	activationService *service.ActivationService,
) *BackfillHandler {
	return &BackfillHandler{
		backfillService:   backfillService,
		tokenService:      tokenService,
		activationService: activationService,
	}
}

func (h *BackfillHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/backfill", h.StartBackfill)
	r.Get("/backfill/progress", h.Progress)
	r.Post("/backfill/retry", h.Retry)
	r.Post("/activation/steps", h.CompleteActivationStep)
	return r
}

type startBackfillRequest struct {
	UserID    string `json:"userId"`
	YearsBack int    `json:"yearsBack"`
}

func (h *BackfillHandler) StartBackfill(w http.ResponseWriter, r *http.Request) {
	var req startBackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.UserID == "" {
		writeError(w, apperrors.MissingRequired("userId"))
		return
	}
	if req.YearsBack <= 0 {
		writeError(w, apperrors.InvalidInput("yearsBack", "must be positive"))
		return
	}

	ctx := r.Context()

	token, err := h.tokenService.EnsureValidAccessTokenForUser(ctx, req.UserID)
	if err != nil {
		writeError(w, tokenErrorToAppError(err))
		return
	}

	summary, err := h.backfillService.StartBackfill(ctx, req.UserID, token, req.YearsBack)
	if err != nil {
		if errors.Is(err, service.ErrBackfillIncomplete) {
			// The run ended early but the requested chunks stand; the
			// caller re-POSTs to drain the rest.
			writeJSON(w, http.StatusOK, summary)
			return
		}
		if errors.Is(err, service.ErrBackfillUnauthorized) {
			// Partial progress is still worth returning; the caller
			// needs to know the token died mid-run.
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":   "Access token rejected during backfill",
				"summary": summary,
			})
			return
		}
		log.Error().Err(err).Str("userId", req.UserID).Msg("backfill failed")
		writeError(w, apperrors.Internal("Backfill failed").WithCause(err))
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *BackfillHandler) Progress(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, apperrors.MissingRequired("userId"))
		return
	}

	progress, err := h.backfillService.GetProgress(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to load backfill progress")
		writeError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, progress)
}

type retryRequest struct {
	UserID string `json:"userId"`
}

func (h *BackfillHandler) Retry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.UserID == "" {
		writeError(w, apperrors.MissingRequired("userId"))
		return
	}

	reset, err := h.backfillService.RetryFailed(r.Context(), req.UserID)
	if err != nil {
		log.Error().Err(err).Str("userId", req.UserID).Msg("failed to reset failed chunks")
		writeError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"reset": reset})
}

type activationStepRequest struct {
	UserID string `json:"userId"`
	Step   string `json:"step"`
}

func (h *BackfillHandler) CompleteActivationStep(w http.ResponseWriter, r *http.Request) {
	var req activationStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.UserID == "" {
		writeError(w, apperrors.MissingRequired("userId"))
		return
	}

	step := model.ActivationStep(req.Step)
	if !model.ValidActivationStep(step) {
		writeError(w, apperrors.InvalidInput("step", "unknown activation step"))
		return
	}

	if err := h.activationService.CompleteStep(r.Context(), req.UserID, step); err != nil {
		log.Error().Err(err).Str("userId", req.UserID).Str("step", req.Step).Msg("failed to complete activation step")
		writeError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func tokenErrorToAppError(err error) error {
	switch {
	case errors.Is(err, service.ErrCredentialsMissing):
		return apperrors.CredentialsMissing()
	case errors.Is(err, service.ErrNoRefreshToken):
		return apperrors.NoRefreshToken()
	case errors.Is(err, service.ErrRefreshRejected):
		return apperrors.RefreshRejected()
	case errors.Is(err, service.ErrLockContention):
		return apperrors.LockContention()
	default:
		return apperrors.External("garmin", err)
	}
}
