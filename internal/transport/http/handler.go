package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nfavre/gatehouse/internal/domain/user"
	"github.com/nfavre/gatehouse/internal/refresh"
	"github.com/nfavre/gatehouse/internal/session"
	"github.com/nfavre/gatehouse/internal/verify"
)

const maxJSONBodyBytes = 1 << 20

// Handler exposes the session flows over JSON. All auth semantics live in
// the orchestrator; this layer only decodes, dispatches and maps errors
// to status codes.
type Handler struct {
	sessions *session.Orchestrator
	log      *zap.Logger
}

func NewHandler(sessions *session.Orchestrator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{sessions: sessions, log: log.With(zap.String("component", "http"))}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type resendRequest struct {
	Email string `json:"email"`
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	Username     string `json:"username"`
	Email        string `json:"email"`
}

type userResponse struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	Enabled  bool     `json:"enabled"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decode(w, r, &body) {
		return
	}
	u, pair, err := h.sessions.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		h.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		Username:     u.Username,
		Email:        u.Email,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decode(w, r, &body) {
		return
	}
	u, pair, err := h.sessions.Login(r.Context(), body.Username, body.Password, body.RememberMe)
	if err != nil {
		h.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		Username:     u.Username,
		Email:        u.Email,
	})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decode(w, r, &body) {
		return
	}
	access, rt, err := h.sessions.Refresh(r.Context(), strings.TrimSpace(body.RefreshToken))
	if err != nil {
		h.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  access,
		RefreshToken: rt.Token,
		TokenType:    "Bearer",
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decode(w, r, &body) {
		return
	}
	if err := h.sessions.Logout(r.Context(), strings.TrimSpace(body.RefreshToken)); err != nil {
		h.mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var body changePasswordRequest
	if !decode(w, r, &body) {
		return
	}
	if err := h.sessions.ChangePassword(r.Context(), u.Username, body.OldPassword, body.NewPassword); err != nil {
		h.mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var body resendRequest
	if !decode(w, r, &body) {
		return
	}
	if err := h.sessions.ResendVerification(r.Context(), body.Email); err != nil {
		h.mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing verification token")
		return
	}
	if err := h.sessions.VerifyEmail(r.Context(), token); err != nil {
		h.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		Username: u.Username,
		Email:    u.Email,
		Roles:    u.Roles,
		Enabled:  u.Enabled,
	})
}

func (h *Handler) mapError(w http.ResponseWriter, err error) {
	var locked *session.AccountLockedError
	if errors.As(err, &locked) {
		w.Header().Set("Retry-After", strconv.Itoa(locked.RemainingMinutes*60))
		writeError(w, http.StatusTooManyRequests, locked.Error())
		return
	}
	var invalid *session.InvalidCredentialsError
	if errors.As(err, &invalid) {
		writeError(w, http.StatusUnauthorized, invalid.Error())
		return
	}

	switch {
	case errors.Is(err, session.ErrDuplicateIdentifier):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrEmailNotVerified):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, session.ErrWeakPassword),
		errors.Is(err, session.ErrIncorrectOldPassword),
		errors.Is(err, session.ErrSamePassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, refresh.ErrNotFound),
		errors.Is(err, refresh.ErrRevoked),
		errors.Is(err, refresh.ErrExpired):
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
	case errors.Is(err, verify.ErrUnknown),
		errors.Is(err, verify.ErrExpired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, verify.ErrAlreadyVerified):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
