package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/service"
)

type AuthHandler struct {
	svc    service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID        uint64 `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type LoginResponse struct {
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt string       `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

type CurrentUserRequest struct {
	Username string `json:"username"`
}

func (h *AuthHandler) Signup(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username and password are required")
	}
	u, err := h.svc.Signup(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return writeError(c, h.logger, err, "failed to create user")
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User created successfully",
		"user":    toUserResponse(u),
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if req.Username == "" || req.Password == "" {
		return badRequest(c, "username and password are required")
	}
	sess, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return writeError(c, h.logger, err, "failed to log in")
	}
	return c.JSON(http.StatusOK, LoginResponse{
		Message:   "Login successful",
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toUserResponse(sess.User),
	})
}

func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	u, err := h.svc.Me(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch user")
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserResponse(u)})
}

// CurrentUser resolves a username to its id.
func (h *AuthHandler) CurrentUser(c echo.Context) error {
	var req CurrentUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	id, err := h.svc.LookupUserID(c.Request().Context(), req.Username)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch user")
	}
	return c.JSON(http.StatusOK, echo.Map{"userId": id})
}

func toUserResponse(u *model.User) UserResponse {
	resp := UserResponse{ID: u.ID, Username: u.Username}
	if !u.CreatedAt.IsZero() {
		resp.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return resp
}
