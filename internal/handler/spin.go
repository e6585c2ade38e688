// Package handler provides the HTTP handlers for the spin wheel API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/xc9973/spinwheel-service/internal/model"
	"github.com/xc9973/spinwheel-service/internal/reward"
	"github.com/xc9973/spinwheel-service/internal/spin"
)

// uidHeader carries the verified user id. The identity layer in front of
// this service populates it; the engine trusts it as-is.
const uidHeader = "X-User-Id"

// SpinHandler serves the spin wheel endpoints.
type SpinHandler struct {
	service      *spin.Service
	historyLimit int
}

// NewSpinHandler creates a new SpinHandler.
func NewSpinHandler(service *spin.Service, historyLimit int) *SpinHandler {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &SpinHandler{service: service, historyLimit: historyLimit}
}

// statusResponse mirrors the legacy status payload.
type statusResponse struct {
	Success           bool            `json:"success"`
	FreeSpinAvailable bool            `json:"free_spin_available"`
	BonusSpins        int64           `json:"bonus_spins"`
	WalletCoins       int64           `json:"wallet_coins"`
	Rewards           []reward.Reward `json:"rewards"`
}

// spinResponse mirrors the legacy spin payload.
type spinResponse struct {
	Success           bool          `json:"success"`
	Reward            *reward.Drawn `json:"reward,omitempty"`
	Sector            int           `json:"sector"`
	FreeSpinUsedToday bool          `json:"free_spin_used_today"`
	BonusSpinsLeft    int64         `json:"bonus_spins_left"`
	WalletCoins       int64         `json:"wallet_coins"`
	Message           string        `json:"message,omitempty"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Status handles GET /api/spin/status.
func (h *SpinHandler) Status(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get(uidHeader)
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "UID is required"})
		return
	}

	status, err := h.service.Status(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, err, "status failed")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Success:           true,
		FreeSpinAvailable: status.FreeSpinAvailable,
		BonusSpins:        status.BonusSpins,
		WalletCoins:       status.WalletBalance,
		Rewards:           status.Rewards,
	})
}

// Spin handles POST /api/spin.
func (h *SpinHandler) Spin(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get(uidHeader)
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "UID is required"})
		return
	}

	outcome, err := h.service.Spin(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, err, "spin failed")
		return
	}

	if !outcome.Accepted {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: outcome.Reason})
		return
	}

	writeJSON(w, http.StatusOK, spinResponse{
		Success:           true,
		Reward:            outcome.Reward,
		Sector:            outcome.SectorIndex,
		FreeSpinUsedToday: outcome.FreeSpinConsumed,
		BonusSpinsLeft:    outcome.BonusSpinsRemaining,
		WalletCoins:       outcome.WalletBalance,
	})
}

// Bonus handles POST /api/spin/bonus (rewarded action grants one spin).
func (h *SpinHandler) Bonus(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get(uidHeader)
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "UID is required"})
		return
	}

	total, err := h.service.GrantBonusSpin(r.Context(), uid)
	if err != nil {
		h.writeServiceError(w, r, err, "bonus grant failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"message":          "Bonus spin added",
		"bonus_spins_left": total,
	})
}

// History handles GET /api/spin/history.
func (h *SpinHandler) History(w http.ResponseWriter, r *http.Request) {
	uid := r.Header.Get(uidHeader)
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "UID is required"})
		return
	}

	records, err := h.service.History(r.Context(), uid, h.historyLimit)
	if err != nil {
		h.writeServiceError(w, r, err, "history fetch failed")
		return
	}
	if records == nil {
		records = []*model.HistoryRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"total":   len(records),
		"history": records,
	})
}

// Rewards handles GET /api/spin/rewards.
func (h *SpinHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"rewards": h.service.Rewards(),
	})
}

// writeServiceError translates engine errors into transport responses.
// Storage failures and exhausted commit conflicts surface as server-side
// errors; they are never masked behind fabricated success payloads.
func (h *SpinHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, spin.ErrInvalidUID):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "UID is required"})
	case errors.Is(err, spin.ErrConcurrencyConflict):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg(msg)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Message: "Please try again"})
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
	}
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
