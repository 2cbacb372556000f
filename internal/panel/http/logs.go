package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/pkg/httpx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
)

type LogsHandler struct {
	AuditService *service.AuditService
}

type eventResponse struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
}

// ServeHTTP lists security events, filtered by the query string. Admin only.
func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	q := r.URL.Query()
	query := domain.EventQuery{
		Level:  q.Get("level"),
		Source: q.Get("source"),
		Search: q.Get("search"),
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			ErrBadRequest.WriteError(w)
			return
		}
		query.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			ErrBadRequest.WriteError(w)
			return
		}
		query.Until = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			ErrBadRequest.WriteError(w)
			return
		}
		query.Limit = n
	}

	events, err := h.AuditService.Query(ctx, query)
	if err != nil {
		log.Error("failed to query security events", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	views := make([]eventResponse, 0, len(events))
	for _, e := range events {
		views = append(views, eventResponse{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Level:     e.Level,
			Source:    e.Source,
			Message:   e.Message,
			Details:   e.Details,
			UserID:    e.UserID,
			IPAddress: e.IPAddress,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"events": views})
}
