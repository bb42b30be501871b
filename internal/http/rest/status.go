// Package rest exposes the agent's observability surface: a health
// endpoint backed by the outage detector and a listing of tracked
// transfers.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/chunkwire/chunkwire/internal/logctx"
	"github.com/chunkwire/chunkwire/internal/netstatus"
	"github.com/chunkwire/chunkwire/internal/storage"
	"github.com/go-chi/chi/v5"
)

type HealthResponse struct {
	Status       string `json:"status"`
	Connectivity string `json:"connectivity"`
}

type TransferResponse struct {
	TransferID    string `json:"transfer_id"`
	FilePath      string `json:"file_path"`
	TransferredAt string `json:"transferred_at,omitempty"`
	Status        string `json:"status"`
}

// StatusHandler serves the agent status endpoints.
type StatusHandler struct {
	repo     storage.TransferReadRepository
	detector *netstatus.Detector
}

func NewStatusHandler(repo storage.TransferReadRepository, detector *netstatus.Detector) *StatusHandler {
	return &StatusHandler{repo: repo, detector: detector}
}

// Routes mounts the status endpoints on a chi router.
func (h *StatusHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	r.Get("/transfers", h.transfers)

	return r
}

func (h *StatusHandler) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Connectivity: "up"}

	if h.detector != nil && h.detector.Down() {
		resp.Connectivity = "down"
	}

	writeJSON(w, r, http.StatusOK, resp)
}

func (h *StatusHandler) transfers(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.GetTransfers()
	if err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to list transfers", "err", err)
		http.Error(w, "failed to list transfers", http.StatusInternalServerError)

		return
	}

	resp := make([]TransferResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, TransferResponse{
			TransferID:    rec.TransferID,
			FilePath:      rec.FilePath,
			TransferredAt: rec.TransferredAt,
			Status:        rec.Status,
		})
	}

	writeJSON(w, r, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logctx.LoggerFromContext(r.Context()).Error("failed to encode response", "err", err)
	}
}
