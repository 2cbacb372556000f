package http

import (
	"encoding/json"
	"net/http"

	"github.com/harwood-dev/deskgate/internal/panel/domain"
	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/pkg/httpx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
)

type SettingsHandler struct {
	SettingsService *service.SettingsService
}

// HandleGet returns the current settings document (defaults until first write).
func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	settings, err := h.SettingsService.Get(ctx)
	if err != nil {
		log.Error("failed to load settings", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, settings)
}

type settingsUpdateRequest struct {
	Security *domain.SecuritySettings `json:"security,omitempty"`
	RDP      *domain.RDPSettings      `json:"rdp,omitempty"`
	Files    *domain.FileSettings     `json:"files,omitempty"`
	System   *domain.SystemSettings   `json:"system,omitempty"`
}

// HandleUpdate replaces the supplied sections. Admin only.
func (h *SettingsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	username, _ := ctx.Value(httpx.CtxKeyUsername).(string)

	var req settingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrBadRequest.WriteError(w)
		return
	}
	if req.Security == nil && req.RDP == nil && req.Files == nil && req.System == nil {
		ErrBadRequest.WriteError(w)
		return
	}

	updated, err := h.SettingsService.Update(ctx, username, service.SettingsUpdate{
		Security: req.Security,
		RDP:      req.RDP,
		Files:    req.Files,
		System:   req.System,
	})
	if err != nil {
		log.Error("failed to update settings", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, updated)
}
