package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/perch-social/perch/internal/http/middleware"
	"github.com/perch-social/perch/internal/http/response"
	"github.com/perch-social/perch/internal/observability"
	"github.com/perch-social/perch/internal/service"
)

type AuthHandler struct {
	deviceFlow *service.DeviceFlowService
	sessions   *service.SessionService
}

func NewAuthHandler(deviceFlow *service.DeviceFlowService, sessions *service.SessionService) *AuthHandler {
	return &AuthHandler{deviceFlow: deviceFlow, sessions: sessions}
}

type deviceStartResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

func (h *AuthHandler) DeviceStart(w http.ResponseWriter, r *http.Request) {
	result, err := h.deviceFlow.Start(r.Context())
	if err != nil {
		observability.Audit(r, "auth.device.start", "outcome", "failure")
		response.Error(w, r, http.StatusBadGateway, "PROVIDER_ERROR", "identity provider request failed", nil)
		return
	}
	observability.Audit(r, "auth.device.start", "outcome", "success", "user_code", result.UserCode)
	response.JSON(w, r, http.StatusOK, deviceStartResponse{
		DeviceCode:      result.DeviceCode,
		UserCode:        result.UserCode,
		VerificationURI: result.VerificationURI,
		ExpiresIn:       result.ExpiresIn,
		Interval:        result.Interval,
	})
}

type devicePollRequest struct {
	DeviceCode string `json:"device_code"`
}

type userPayload struct {
	ID    uint   `json:"id"`
	Login string `json:"login"`
}

type devicePollResponse struct {
	SessionToken string      `json:"session_token"`
	User         userPayload `json:"user"`
}

func (h *AuthHandler) DevicePoll(w http.ResponseWriter, r *http.Request) {
	var req devicePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceCode == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "device_code is required", nil)
		return
	}

	result, err := h.deviceFlow.Poll(r.Context(), req.DeviceCode)
	switch {
	case errors.Is(err, service.ErrAuthorizationPending):
		response.Error(w, r, http.StatusBadRequest, "authorization_pending", "authorization is pending", nil)
		return
	case errors.Is(err, service.ErrSlowDown):
		response.Error(w, r, http.StatusBadRequest, "slow_down", "polling too fast", nil)
		return
	case errors.Is(err, service.ErrAccessDenied):
		observability.Audit(r, "auth.device.poll", "outcome", "denied")
		response.Error(w, r, http.StatusBadRequest, "access_denied", "the user denied the request", nil)
		return
	case errors.Is(err, service.ErrExpiredToken):
		response.Error(w, r, http.StatusBadRequest, "expired_token", "the device code has expired", nil)
		return
	case err != nil:
		observability.Audit(r, "auth.device.poll", "outcome", "failure")
		response.Error(w, r, http.StatusBadGateway, "PROVIDER_ERROR", "identity provider request failed", nil)
		return
	}

	observability.Audit(r, "auth.device.poll", "outcome", "approved", "user_id", result.User.ID)
	response.JSON(w, r, http.StatusOK, devicePollResponse{
		SessionToken: result.SessionToken,
		User:         userPayload{ID: result.User.ID, Login: result.User.ExternalLogin},
	})
}

// Validate runs behind the session middleware, so reaching it means the
// token resolved.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]userPayload{
		"user": {ID: user.ID, Login: user.ExternalLogin},
	})
}

// Logout tears down the presented session. Unknown tokens still return 200:
// the end state, no such session, is the same either way.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionTokenFromRequest(r)
	if token == "" {
		observability.RecordAuthLogout("missing_token")
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing session token", nil)
		return
	}
	if err := h.sessions.Logout(r.Context(), token); err != nil {
		observability.RecordAuthLogout("error")
		response.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", "logout failed", nil)
		return
	}
	observability.RecordAuthLogout("success")
	observability.Audit(r, "auth.logout", "outcome", "success")
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "logged_out"})
}
