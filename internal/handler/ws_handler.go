package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/ecograd-backend/internal/realtime"
)

type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler builds the push endpoint. allowOrigin vets the Origin header;
// requests without one (non-browser clients) are accepted.
func NewWSHandler(hub *realtime.Hub, allowOrigin func(string) bool, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowOrigin(origin)
			},
		},
		logger: logger,
	}
}

func (h *WSHandler) Serve(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written an error response
		h.logger.DebugContext(c.Request().Context(), "websocket upgrade failed", "user_id", uid, "err", err)
		return nil
	}
	h.hub.Serve(conn, uid)
	return nil
}
