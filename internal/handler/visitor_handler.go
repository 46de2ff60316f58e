package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/ecograd-backend/internal/service"
)

type VisitorHandler struct {
	svc    service.VisitorService
	logger *slog.Logger
}

func NewVisitorHandler(svc service.VisitorService, logger *slog.Logger) *VisitorHandler {
	return &VisitorHandler{svc: svc, logger: logger}
}

type TrackVisitorRequest struct {
	PageURL  string `json:"pageUrl"`
	Referrer string `json:"referrer"`
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get(echo.HeaderXRealIP)); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *VisitorHandler) Track(c echo.Context) error {
	var req TrackVisitorRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	r := c.Request()
	err := h.svc.Track(r.Context(), service.Visit{
		PageURL:   req.PageURL,
		Referrer:  req.Referrer,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return writeError(c, h.logger, err, "Failed to track visitor")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
