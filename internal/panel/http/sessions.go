package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/httpx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
)

type SessionsHandler struct {
	SessionService *service.SessionService
}

type sessionResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	SessionType string     `json:"session_type"`
	IPAddress   string     `json:"ip_address"`
	Country     string     `json:"country,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Status      string     `json:"status"`
}

func sessionView(s domain.Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		SessionType: s.SessionType,
		IPAddress:   s.IPAddress,
		Country:     s.Country,
		UserAgent:   s.UserAgent,
		StartedAt:   s.StartedAt,
		EndedAt:     s.EndedAt,
		Status:      s.Status,
	}
}

// HandleList returns the caller's sessions; admins see every active session
// with ?all=true.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	var (
		sessions []domain.Session
		err      error
	)
	if r.URL.Query().Get("all") == "true" {
		role, _ := httpx.RoleFromContext(ctx)
		if role != domain.RoleAdmin {
			ErrForbidden.WriteError(w)
			return
		}
		sessions, err = h.SessionService.ListActive(ctx)
	} else {
		sessions, err = h.SessionService.ListByUser(ctx, userID, 50)
	}
	if err != nil {
		log.Error("failed to list sessions", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	views := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView(s))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// HandleTerminate kills one session. Admin only.
func (h *SessionsHandler) HandleTerminate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		ErrBadRequest.WriteError(w)
		return
	}

	if err := h.SessionService.Terminate(ctx, sessionID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ErrNotFound.WriteError(w)
			return
		}
		log.Error("failed to terminate session", "session_id", sessionID, "err", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "session terminated"})
}
