package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/browsersearch/pkg/logger"
)

// Ingester is satisfied by *publisher.Publisher.
type Ingester interface {
	Ingest(ctx context.Context, req *ingestion.PageRequest) (*ingestion.PageResponse, error)
}

type Handler struct {
	ingester     Ingester
	maxHTMLBytes int
	logger       *slog.Logger
}

func New(ing Ingester, maxHTMLBytes int) *Handler {
	return &Handler{
		ingester:     ing,
		maxHTMLBytes: maxHTMLBytes,
		logger:       slog.Default().With("component", "ingestion-handler"),
	}
}

// Ingest handles POST /api/v1/pages.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.maxHTMLBytes > 0 {
		// JSON escaping can double the size of the html field.
		r.Body = http.MaxBytesReader(w, r.Body, int64(2*h.maxHTMLBytes+64<<10))
	}
	var req ingestion.PageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidatePageRequest(&req, h.maxHTMLBytes); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.ingester.Ingest(ctx, &req)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed", "error", err, "status_code", status)
		h.writeError(w, status, apperrors.ClientMessage(err, "ingestion failed"))
		return
	}
	log.Info("page ingested",
		"doc_id", resp.DocumentID,
		"visit_id", resp.VisitID,
		"status", resp.Status,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
