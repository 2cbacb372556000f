package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/pkg/httpx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
)

type TwoFactorHandler struct {
	TwoFactorService *service.TwoFactorService
}

type twoFactorSetupResponse struct {
	Secret string `json:"secret"`
	URI    string `json:"uri"`
	QRCode string `json:"qr_code"`
}

// HandleSetup starts enrollment: generates and stores a pending secret.
func (h *TwoFactorHandler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	enrollment, err := h.TwoFactorService.Setup(ctx, userID)
	if err != nil {
		if errors.Is(err, service.ErrTOTPAlreadyEnabled) {
			ErrConflict.WriteError(w)
			return
		}
		log.Error("totp setup failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, twoFactorSetupResponse{
		Secret: enrollment.Secret,
		URI:    enrollment.URI,
		QRCode: enrollment.Image,
	})
}

type twoFactorEnableRequest struct {
	Code string `json:"code"`
}

// HandleEnable verifies the code against the pending secret and turns 2FA on.
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	var req twoFactorEnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		ErrBadRequest.WriteError(w)
		return
	}

	if err := h.TwoFactorService.Enable(ctx, userID, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			ErrInvalidCredentials.WriteError(w)
		case errors.Is(err, service.ErrTOTPSetupMissing):
			ErrTOTPSetupMissing.WriteError(w)
		case errors.Is(err, service.ErrTOTPAlreadyEnabled):
			ErrConflict.WriteError(w)
		default:
			log.Error("totp enable failed", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "two-factor enabled"})
}

type twoFactorDisableRequest struct {
	Password string `json:"password"`
}

// HandleDisable turns 2FA off after re-proving the account password.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		ErrForbidden.WriteError(w)
		return
	}

	var req twoFactorDisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		ErrBadRequest.WriteError(w)
		return
	}

	if err := h.TwoFactorService.Disable(ctx, userID, req.Password); err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			ErrInvalidCredentials.WriteError(w)
			return
		}
		log.Error("totp disable failed", "err", err)
		ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "two-factor disabled"})
}
