package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/ecograd-backend/internal/middleware"
	"github.com/shinyyama/ecograd-backend/internal/service"
)

// ErrorResponse carries the human-readable message in error, which clients
// display as is, and a machine-readable code beside it.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: message,
		Code:  code,
	}
}

var errorStatuses = []struct {
	sentinel error
	status   int
	code     string
}{
	{service.ErrValidation, http.StatusBadRequest, "bad_request"},
	{service.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrConflict, http.StatusConflict, "conflict"},
}

// writeError maps a service error onto a status code. Unknown errors are
// logged and reported as failed.
func writeError(c echo.Context, logger *slog.Logger, err error, failed string) error {
	for _, m := range errorStatuses {
		if errors.Is(err, m.sentinel) {
			msg := strings.TrimPrefix(err.Error(), m.sentinel.Error()+": ")
			return c.JSON(m.status, NewErrorResponse(m.code, msg))
		}
	}
	logger.ErrorContext(c.Request().Context(), failed,
		"err", err,
		"path", c.Path(),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", failed))
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", msg))
}

// currentUser returns the user id bound by the auth middleware.
func currentUser(c echo.Context) (uint64, bool) {
	uid, ok := c.Get(appmw.ContextUserID).(uint64)
	return uid, ok && uid != 0
}

func missingUser(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
}

func parseID(raw string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	return id, err == nil && id != 0
}

// impersonates reports whether a client-supplied user id names someone other
// than the session user. An absent id means the session user.
func impersonates(uid uint64, claimed *uint64) bool {
	return claimed != nil && *claimed != 0 && *claimed != uid
}

func forbiddenUser(c echo.Context) error {
	return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "user id does not match session"))
}

func queryUserID(c echo.Context, name string) (*uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	id, ok := parseID(raw)
	if !ok {
		return nil, errors.New("invalid " + name)
	}
	return &id, nil
}
