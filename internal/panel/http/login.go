package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/pkg/httpx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
)

type LoginHandler struct {
	LoginService *service.LoginService
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		ErrBadRequest.WriteError(w)
		return
	}

	grant, _, err := h.LoginService.Login(ctx, service.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		TOTPCode:  req.TOTPCode,
		IPAddress: httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			ErrInvalidCredentials.WriteError(w)
		case errors.Is(err, service.ErrAccountLocked):
			ErrAccountLocked.WriteError(w)
		case errors.Is(err, service.ErrTOTPRequired):
			ErrTOTPRequired.WriteError(w)
		case errors.Is(err, service.ErrTOTPSetupMissing):
			ErrTOTPSetupMissing.WriteError(w)
		case errors.Is(err, service.ErrIPForbidden):
			ErrIPForbidden.WriteError(w)
		default:
			// Store failures and other internals are logged, never exposed.
			log.Error("login failed", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: grant.AccessToken,
		TokenType:   grant.TokenType,
		ExpiresIn:   int64(grant.ExpiresIn / time.Second),
	})
}
