// Package api exposes the HTTP surface of SecureTalk: account management,
// the user directory with presence flags, conversation history, health and
// metrics probes, and the WebSocket upgrade endpoint.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/securetalk/internal/session"
	"github.com/Tyrowin/securetalk/internal/store"
)

// AuthHandler implements registration, login, and logout.
type AuthHandler struct {
	store    *store.Store
	sessions *session.Store
	logger   zerolog.Logger
}

func NewAuthHandler(st *store.Store, sessions *session.Store, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		store:    st,
		sessions: sessions,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=6"`
	Password string `json:"password" validate:"required,min=6,specialchar"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Register creates a new user account.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := h.store.CreateUser(c.Request().Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		h.logger.Error().Err(err).Msg("creating user")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusCreated, map[string]bool{"success": true})
}

// Login verifies credentials and mints a session token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	if err := h.store.Authenticate(c.Request().Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}
		h.logger.Error().Err(err).Msg("authenticating user")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	token, err := h.sessions.Create(req.Username)
	if err != nil {
		h.logger.Error().Err(err).Msg("creating session")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, loginResponse{Username: req.Username, Token: token})
}

// Logout invalidates the caller's session token. Invalidation is
// idempotent, so logging out twice succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.sessions.Invalidate(tokenFromContext(c))
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
