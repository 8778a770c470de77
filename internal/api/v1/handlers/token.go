package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marginote/marginote/pkg/httpext"
)

type tokenRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HandleToken exchanges the configured API key for a bearer token.
func (h *Handlers) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn().Err(err).Msg("Client sent malformed token request")
		httpext.JsonError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpext.JsonError(w, "api_key is required", http.StatusBadRequest)
		return
	}

	token, expiresAt, err := h.sessions.Exchange(req.APIKey)
	if err != nil {
		log.Warn().Str("client_ip", r.RemoteAddr).Msg("Rejected token exchange")
		httpext.JsonError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	httpext.JsonOK(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	})
}
