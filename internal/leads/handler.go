package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// SnapshotArchiver stores a CSV snapshot of the leads before they are deleted.
type SnapshotArchiver interface {
	PutSnapshot(ctx context.Context, name string, csv []byte) error
}

// Handler serves the admin view of stored leads.
type Handler struct {
	repo     Repository
	archiver SnapshotArchiver
	loc      *time.Location
	now      func() time.Time
	logger   *logging.Logger
}

// NewHandler creates a new leads handler. archiver may be nil.
func NewHandler(repo Repository, archiver SnapshotArchiver, loc *time.Location, logger *logging.Logger) *Handler {
	if repo == nil {
		panic("leads: repository required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:     repo,
		archiver: archiver,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

func (h *Handler) today() time.Time {
	return h.now().In(h.loc)
}

// ListLeads handles GET /admin/leads?cursor=
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	page, err := h.repo.ListPage(r.Context(), r.URL.Query().Get("cursor"))
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cursor"})
			return
		}
		h.logger.Error("failed to list leads", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list leads"})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ExportCSV handles GET /admin/leads/export.csv
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	body, count, err := h.snapshot(r.Context(), today)
	if err != nil {
		h.logger.Error("failed to export leads", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to export leads"})
		return
	}

	h.logger.Info("leads exported", "count", count)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename(today)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// DeleteAll handles DELETE /admin/leads
func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.archiver != nil {
		today := h.today()
		body, count, err := h.snapshot(ctx, today)
		if err != nil {
			h.logger.Error("failed to build snapshot before delete", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to archive leads"})
			return
		}
		name := ExportFilename(today)
		if err := h.archiver.PutSnapshot(ctx, name, body); err != nil {
			h.logger.Error("failed to archive leads before delete", "error", err, "count", count)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to archive leads"})
			return
		}
		h.logger.Info("leads archived", "name", name, "count", count)
	}

	deleted, err := h.repo.DeleteAll(ctx)
	if err != nil {
		h.logger.Error("failed to delete leads", "error", err, "deleted", deleted)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to delete leads", "deleted": deleted})
		return
	}
	h.logger.Warn("all leads deleted", "deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *Handler) snapshot(ctx context.Context, today time.Time) ([]byte, int, error) {
	var all []*Lead
	if err := ForEach(ctx, h.repo, func(l *Lead) error {
		all = append(all, l)
		return nil
	}); err != nil {
		return nil, 0, err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, all, today); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), len(all), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
