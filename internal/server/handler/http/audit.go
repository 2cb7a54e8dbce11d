package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/atinyakov/sharedpasswords/internal/models"
	"github.com/atinyakov/sharedpasswords/internal/repository"
)

// AuditReader reads the audit journal.
type AuditReader interface {
	// ListRecent returns the newest events, optionally limited to operations.
	ListRecent(ctx context.Context, limit int, operations ...string) ([]models.AuditEvent, error)
	// CountOutcomes groups events since a point in time by operation and code.
	CountOutcomes(ctx context.Context, since time.Time) ([]repository.OutcomeCount, error)
}

// AuditHandler serves the audit journal.
type AuditHandler struct {
	Audit AuditReader
	// Now defaults to time.Now.
	Now func() time.Time
}

// List handles GET /api/audit?limit=N&operation=savePassword.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := h.Audit.ListRecent(r.Context(), limit, q["operation"]...)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// Summary handles GET /api/audit/summary?window=24h.
func (h *AuditHandler) Summary(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			http.Error(w, "invalid window", http.StatusBadRequest)
			return
		}
		window = d
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	counts, err := h.Audit.CountOutcomes(r.Context(), now().Add(-window))
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if counts == nil {
		counts = []repository.OutcomeCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}
