package handler

import (
	"log/slog"
	"net/http"

	"capturesque/internal/api/middleware"
	"capturesque/internal/app/service"
	"capturesque/internal/common"
)

type AuthHandler struct {
	authService *service.AuthService
	log         *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// Register answers a taken email with 400, not 409.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		respondError(w, r, h.log, common.StatusWithConflict(err, http.StatusBadRequest), err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

// Verify runs behind the Authenticated tier; reaching it means the token is
// valid.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, common.ErrTokenMissing.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "user": id})
}

func Health(w http.ResponseWriter, r *http.Request) {
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
