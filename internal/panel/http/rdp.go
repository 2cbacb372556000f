package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/internal/panel/store"
	"github.com/harwood-dev/deskgate/pkg/httpx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
)

type RDPHandler struct {
	RDPService *service.RDPService
}

// rdpConnectionResponse never carries the stored credential, sealed or not.
type rdpConnectionResponse struct {
	ID        string     `json:"id"`
	Host      string     `json:"host"`
	Port      int        `json:"port"`
	Username  string     `json:"username"`
	Quality   string     `json:"quality"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func rdpView(c domain.RDPConnection) rdpConnectionResponse {
	return rdpConnectionResponse{
		ID:        c.ID,
		Host:      c.Host,
		Port:      c.Port,
		Username:  c.Username,
		Quality:   c.Quality,
		Status:    c.Status,
		StartedAt: c.StartedAt,
		EndedAt:   c.EndedAt,
		LastError: c.LastError,
		CreatedAt: c.CreatedAt,
	}
}

func writeRDPError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, store.ErrNotFound):
		ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrNotConnectionOwner):
		ErrForbidden.WriteError(w)
	case errors.Is(err, service.ErrConnectionActive),
		errors.Is(err, service.ErrConnectionInactive):
		ErrConflict.WriteError(w)
	default:
		return false
	}
	return true
}

type rdpCreateRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"`
	Quality  string `json:"quality,omitempty"`
}

// HandleCreate saves a new target.
func (h *RDPHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	var req rdpCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Host == "" || req.Username == "" {
		ErrBadRequest.WriteError(w)
		return
	}

	conn, err := h.RDPService.Create(ctx, userID, service.RDPCreateInput{
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		Quality:  req.Quality,
	})
	if err != nil {
		log.Error("failed to create rdp target", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, rdpView(conn))
}

// HandleList returns the caller's saved targets.
func (h *RDPHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	conns, err := h.RDPService.ListByUser(ctx, userID)
	if err != nil {
		log.Error("failed to list rdp targets", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	views := make([]rdpConnectionResponse, 0, len(conns))
	for _, c := range conns {
		views = append(views, rdpView(c))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"connections": views})
}

// HandleCredential hands the opened credential to the caller's local RDP
// client. Owner-only; the list and detail views never include it.
func (h *RDPHandler) HandleCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	password, err := h.RDPService.Credential(ctx, userID, r.PathValue("id"))
	if err != nil {
		if !writeRDPError(w, err) {
			log.Error("failed to open rdp credential", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"password": password})
}

// HandleConnect marks a target connected.
func (h *RDPHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	conn, err := h.RDPService.Connect(ctx, userID, r.PathValue("id"))
	if err != nil {
		if !writeRDPError(w, err) {
			log.Error("failed to start rdp session", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, rdpView(conn))
}

type rdpDisconnectRequest struct {
	Reason string `json:"reason,omitempty"`
}

// HandleDisconnect ends an active session.
func (h *RDPHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	var req rdpDisconnectRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.RDPService.Disconnect(ctx, userID, r.PathValue("id"), req.Reason); err != nil {
		if !writeRDPError(w, err) {
			log.Error("failed to end rdp session", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// HandleDelete removes a saved target.
func (h *RDPHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	if err := h.RDPService.Delete(ctx, userID, r.PathValue("id")); err != nil {
		if !writeRDPError(w, err) {
			log.Error("failed to delete rdp target", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
