package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Tyrowin/securetalk/internal/server"
	"github.com/Tyrowin/securetalk/internal/store"
)

// ChatHandler serves the user directory and conversation history.
type ChatHandler struct {
	store  *store.Store
	hub    *server.Hub
	logger zerolog.Logger
}

func NewChatHandler(st *store.Store, hub *server.Hub, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		store:  st,
		hub:    hub,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

type userEntry struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// Users lists every registered user except the caller, annotated with a
// point-in-time presence snapshot from the connection registry.
func (h *ChatHandler) Users(c echo.Context) error {
	self := usernameFromContext(c)

	usernames, err := h.store.ListUsers(c.Request().Context(), self)
	if err != nil {
		h.logger.Error().Err(err).Msg("listing users")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "database error"})
	}

	online := make(map[string]struct{})
	for _, username := range h.hub.Registry().OnlineUsernames() {
		online[username] = struct{}{}
	}

	entries := make([]userEntry, 0, len(usernames))
	for _, username := range usernames {
		_, isOnline := online[username]
		entries = append(entries, userEntry{Username: username, Online: isOnline})
	}

	return c.JSON(http.StatusOK, entries)
}

// History returns the full conversation between the caller and the peer
// given in the "with" query parameter, ordered by timestamp ascending with
// insertion order as tie-break.
func (h *ChatHandler) History(c echo.Context) error {
	self := usernameFromContext(c)
	peer := c.QueryParam("with")

	messages, err := h.store.History(c.Request().Context(), self, peer)
	if err != nil {
		h.logger.Error().Err(err).Msg("querying history")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "database error"})
	}

	if messages == nil {
		messages = []store.Message{}
	}
	return c.JSON(http.StatusOK, messages)
}
