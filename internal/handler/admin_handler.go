package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/ecograd-backend/internal/repository"
)

var trackedTables = []string{"users", "posts", "messages", "visitor_logs"}

type AdminHandler struct {
	stats  repository.StatsRepository
	sha    string
	build  string
	logger *slog.Logger
}

func NewAdminHandler(stats repository.StatsRepository, sha, buildTime string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{stats: stats, sha: sha, build: buildTime, logger: logger}
}

func (h *AdminHandler) Tables(c echo.Context) error {
	tables, err := h.stats.TableStats(c.Request().Context(), trackedTables)
	if err != nil {
		return writeError(c, h.logger, err, "failed to check tables")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Tables checked successfully",
		"tables":  tables,
	})
}

func (h *AdminHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	status, db := http.StatusOK, "up"
	if err := h.stats.Ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "health check: database unreachable", "err", err)
		status, db = http.StatusServiceUnavailable, "down"
	}
	return c.JSON(status, map[string]string{
		"ok":         "true",
		"git_sha":    h.sha,
		"build_time": h.build,
		"db":         db,
	})
}
