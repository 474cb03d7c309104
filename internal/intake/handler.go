package intake

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler exposes the public form endpoints.
type Handler struct {
	pipeline *Pipeline
	logger   *logging.Logger
}

// NewHandler creates an intake handler.
func NewHandler(pipeline *Pipeline, logger *logging.Logger) *Handler {
	if pipeline == nil {
		panic("intake: pipeline cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{pipeline: pipeline, logger: logger}
}

// SubmitLead handles POST /leads.
func (h *Handler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	var req leads.SubmitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode submission", "error", err)
		h.writeJSON(w, http.StatusBadRequest, Result{Error: "Invalid request body."})
		return
	}

	result, err := h.pipeline.Submit(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		var verr *leads.ValidationError
		if errors.As(err, &verr) {
			status = http.StatusBadRequest
		}
		h.writeJSON(w, status, result)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// Estimate handles GET /estimate.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	est := leads.CalculateEstimate(leads.EstimateInput{
		NumberOfRooms:             q.Get("numberOfRooms"),
		ApproximateBoxesCount:     q.Get("approximateBoxesCount"),
		ApproximateFurnitureCount: q.Get("approximateFurnitureCount"),
	})
	h.writeJSON(w, http.StatusOK, est)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
