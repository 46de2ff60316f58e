package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/realtime"
	"github.com/shinyyama/ecograd-backend/internal/repository"
)

const maxMessageLen = 2000

// MessageView is the wire shape of one thread message.
type MessageView struct {
	ID             uint64    `json:"id"`
	PostID         uint64    `json:"post_id"`
	SenderID       uint64    `json:"sender_id"`
	ReceiverID     uint64    `json:"receiver_id"`
	Message        string    `json:"message"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
	SenderUsername string    `json:"sender_username"`
}

func NewMessageView(m model.ThreadMessage) MessageView {
	return MessageView{
		ID:             m.ID,
		PostID:         m.PostID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		Message:        m.Body,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
		SenderUsername: m.SenderUsername,
	}
}

// Conversation summarises every message exchanged with one counterpart about one post.
type Conversation struct {
	PostID          uint64    `json:"post_id"`
	PostTitle       string    `json:"post_title"`
	Price           float64   `json:"price"`
	ImageURL        *string   `json:"image_url"`
	OtherUserID     uint64    `json:"other_user_id"`
	OtherUsername   string    `json:"other_username"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	UnreadCount     int       `json:"unread_count"`
}

// ThreadReadEvent is pushed to the original sender once the receiver has read a thread.
type ThreadReadEvent struct {
	PostID   uint64 `json:"post_id"`
	ReaderID uint64 `json:"reader_id"`
	Updated  int64  `json:"updated"`
}

type conversationKey struct {
	postID  uint64
	otherID uint64
}

// AggregateConversations collapses inbox rows into one conversation per
// (post, counterpart). rows must be ordered newest first; the first row seen
// for a key supplies the preview.
func AggregateConversations(viewerID uint64, rows []model.InboxRow) []Conversation {
	index := make(map[conversationKey]int)
	out := make([]Conversation, 0)
	for _, r := range rows {
		otherID, otherName := r.SenderID, r.SenderUsername
		if r.SenderID == viewerID {
			otherID, otherName = r.ReceiverID, r.ReceiverUsername
		}
		key := conversationKey{postID: r.PostID, otherID: otherID}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Conversation{
				PostID:          r.PostID,
				PostTitle:       r.PostTitle,
				Price:           r.Price,
				ImageURL:        r.ImageURL,
				OtherUserID:     otherID,
				OtherUsername:   otherName,
				LastMessage:     r.Body,
				LastMessageTime: r.CreatedAt,
			})
		}
		if r.ReceiverID == viewerID && !r.IsRead {
			out[i].UnreadCount++
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].LastMessageTime.After(out[b].LastMessageTime)
	})
	return out
}

type MessageService interface {
	Send(ctx context.Context, senderID, receiverID, postID uint64, body string) (uint64, error)
	// Thread returns the history oldest first and marks the viewer's incoming
	// messages read. Returned rows carry the flags as they were before marking.
	Thread(ctx context.Context, viewerID, otherUserID, postID uint64) ([]MessageView, error)
	MarkThreadRead(ctx context.Context, postID, fromUserID, toUserID uint64) (int64, error)
	Conversations(ctx context.Context, viewerID uint64) ([]Conversation, error)
	UnreadCount(ctx context.Context, viewerID uint64) (int64, error)
}

type messageService struct {
	messages  repository.MessageRepository
	users     repository.UserRepository
	posts     repository.PostRepository
	publisher realtime.Publisher
	logger    *slog.Logger
}

func NewMessageService(
	messages repository.MessageRepository,
	users repository.UserRepository,
	posts repository.PostRepository,
	publisher realtime.Publisher,
	logger *slog.Logger,
) MessageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &messageService{
		messages:  messages,
		users:     users,
		posts:     posts,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *messageService) Send(ctx context.Context, senderID, receiverID, postID uint64, body string) (uint64, error) {
	body = strings.TrimSpace(body)
	if senderID == 0 || receiverID == 0 || postID == 0 || body == "" {
		return 0, invalid("missing required fields")
	}
	if utf8.RuneCountInString(body) > maxMessageLen {
		return 0, invalid(fmt.Sprintf("message must be at most %d characters", maxMessageLen))
	}
	if senderID == receiverID {
		return 0, invalid("cannot message yourself")
	}
	if _, err := s.users.FindByID(ctx, senderID); err != nil {
		return 0, notFoundOr(err, "sender not found")
	}
	if _, err := s.users.FindByID(ctx, receiverID); err != nil {
		return 0, notFoundOr(err, "receiver not found")
	}
	if _, err := s.posts.FindByID(ctx, postID); err != nil {
		return 0, notFoundOr(err, "post not found")
	}

	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		PostID:     postID,
		Body:       body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "create message failed", "sender_id", senderID, "post_id", postID, "err", err)
		return 0, storeErr(err)
	}

	s.publishCreated(ctx, msg.ID, senderID, receiverID)
	return msg.ID, nil
}

func (s *messageService) publishCreated(ctx context.Context, id, senderID, receiverID uint64) {
	if s.publisher == nil {
		return
	}
	tm, err := s.messages.FindThreadMessage(ctx, id)
	if err != nil {
		s.logger.WarnContext(ctx, "load message for push failed", "message_id", id, "err", err)
		return
	}
	ev := realtime.Event{Type: realtime.EventMessageCreated, Data: NewMessageView(*tm)}
	if err := s.publisher.Publish(ctx, []uint64{senderID, receiverID}, ev); err != nil {
		s.logger.WarnContext(ctx, "push message failed", "message_id", id, "err", err)
	}
}

func (s *messageService) Thread(ctx context.Context, viewerID, otherUserID, postID uint64) ([]MessageView, error) {
	if viewerID == 0 || otherUserID == 0 || postID == 0 {
		return nil, invalid("missing required parameters")
	}
	rows, err := s.messages.ListThread(ctx, postID, viewerID, otherUserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "list thread failed", "post_id", postID, "err", err)
		return nil, storeErr(err)
	}
	out := make([]MessageView, 0, len(rows))
	for _, r := range rows {
		out = append(out, NewMessageView(r))
	}
	// the viewer has now seen everything the counterpart sent
	if _, err := s.MarkThreadRead(ctx, postID, otherUserID, viewerID); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkThreadRead flags as read every unread message from fromUserID to
// toUserID about postID. Repeating the call changes nothing.
func (s *messageService) MarkThreadRead(ctx context.Context, postID, fromUserID, toUserID uint64) (int64, error) {
	if postID == 0 || fromUserID == 0 || toUserID == 0 {
		return 0, invalid("missing required parameters")
	}
	n, err := s.messages.MarkThreadRead(ctx, postID, fromUserID, toUserID)
	if err != nil {
		s.logger.ErrorContext(ctx, "mark thread read failed", "post_id", postID, "err", err)
		return 0, storeErr(err)
	}
	if n > 0 && s.publisher != nil {
		ev := realtime.Event{
			Type: realtime.EventThreadRead,
			Data: ThreadReadEvent{PostID: postID, ReaderID: toUserID, Updated: n},
		}
		if err := s.publisher.Publish(ctx, []uint64{fromUserID}, ev); err != nil {
			s.logger.WarnContext(ctx, "push thread read failed", "post_id", postID, "err", err)
		}
	}
	return n, nil
}

func (s *messageService) Conversations(ctx context.Context, viewerID uint64) ([]Conversation, error) {
	if viewerID == 0 {
		return nil, invalid("userId is required")
	}
	rows, err := s.messages.ListInbox(ctx, viewerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "list inbox failed", "user_id", viewerID, "err", err)
		return nil, storeErr(err)
	}
	return AggregateConversations(viewerID, rows), nil
}

func (s *messageService) UnreadCount(ctx context.Context, viewerID uint64) (int64, error) {
	if viewerID == 0 {
		return 0, invalid("userId is required")
	}
	n, err := s.messages.CountUnread(ctx, viewerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "count unread failed", "user_id", viewerID, "err", err)
		return 0, storeErr(err)
	}
	return n, nil
}

// notFoundOr turns a missing-row error into ErrNotFound with msg.
func notFoundOr(err error, msg string) error {
	mapped := storeErr(err)
	if errors.Is(mapped, ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return mapped
}
