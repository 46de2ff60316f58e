package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/ecograd-backend/internal/service"
)

type MessageHandler struct {
	svc    service.MessageService
	logger *slog.Logger
}

func NewMessageHandler(svc service.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

type SendMessageRequest struct {
	SenderID   *flexID `json:"senderId"`
	ReceiverID flexID  `json:"receiverId"`
	PostID     flexID  `json:"postId"`
	Message    string  `json:"message"`
}

type MarkReadRequest struct {
	UserID      *flexID `json:"userId"`
	OtherUserID flexID  `json:"otherUserId"`
	PostID      flexID  `json:"postId"`
}

// sessionViewer resolves the optional userId query parameter against the
// session. When written is true a response has already been sent.
func sessionViewer(c echo.Context) (uid uint64, written bool, err error) {
	uid, ok := currentUser(c)
	if !ok {
		return 0, true, missingUser(c)
	}
	claimed, perr := queryUserID(c, "userId")
	if perr != nil {
		return 0, true, badRequest(c, perr.Error())
	}
	if impersonates(uid, claimed) {
		return 0, true, forbiddenUser(c)
	}
	return uid, false, nil
}

func (h *MessageHandler) Send(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if impersonates(uid, req.SenderID.ptr()) {
		return forbiddenUser(c)
	}
	id, err := h.svc.Send(c.Request().Context(), uid, uint64(req.ReceiverID), uint64(req.PostID), req.Message)
	if err != nil {
		return writeError(c, h.logger, err, "failed to send message")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "sent", "id": id})
}

func (h *MessageHandler) Conversations(c echo.Context) error {
	uid, written, err := sessionViewer(c)
	if written {
		return err
	}
	convs, err := h.svc.Conversations(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch conversations")
	}
	return c.JSON(http.StatusOK, echo.Map{"conversations": convs})
}

// Thread returns the history and marks the viewer's incoming messages read.
func (h *MessageHandler) Thread(c echo.Context) error {
	uid, written, err := sessionViewer(c)
	if written {
		return err
	}
	other, okOther := parseID(c.QueryParam("otherUserId"))
	post, okPost := parseID(c.QueryParam("postId"))
	if !okOther || !okPost {
		return badRequest(c, "otherUserId and postId are required")
	}
	msgs, err := h.svc.Thread(c.Request().Context(), uid, other, post)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch messages")
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

func (h *MessageHandler) MarkRead(c echo.Context) error {
	uid, ok := currentUser(c)
	if !ok {
		return missingUser(c)
	}
	var req MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if impersonates(uid, req.UserID.ptr()) {
		return forbiddenUser(c)
	}
	n, err := h.svc.MarkThreadRead(c.Request().Context(), uint64(req.PostID), uint64(req.OtherUserID), uid)
	if err != nil {
		return writeError(c, h.logger, err, "failed to mark messages read")
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}

func (h *MessageHandler) UnreadCount(c echo.Context) error {
	uid, written, err := sessionViewer(c)
	if written {
		return err
	}
	n, err := h.svc.UnreadCount(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.logger, err, "failed to fetch unread count")
	}
	return c.JSON(http.StatusOK, echo.Map{"unreadCount": n})
}
