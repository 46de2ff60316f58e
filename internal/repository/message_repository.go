package repository

import (
	"context"

	"github.com/shinyyama/ecograd-backend/internal/model"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	FindThreadMessage(ctx context.Context, id uint64) (*model.ThreadMessage, error)
	ListInbox(ctx context.Context, userID uint64) ([]model.InboxRow, error)
	ListThread(ctx context.Context, postID, userID, otherUserID uint64) ([]model.ThreadMessage, error)
	MarkThreadRead(ctx context.Context, postID, fromUserID, toUserID uint64) (int64, error)
	CountUnread(ctx context.Context, userID uint64) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Omit("Sender", "Receiver", "Post").Create(msg).Error
}

func (r *messageRepository) threadQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.id, m.post_id, m.sender_id, m.receiver_id, m.message, m.is_read, m.created_at, u.username AS sender_username").
		Joins("JOIN users u ON u.id = m.sender_id")
}

func (r *messageRepository) FindThreadMessage(ctx context.Context, id uint64) (*model.ThreadMessage, error) {
	var rows []model.ThreadMessage
	if err := r.threadQuery(ctx).Where("m.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// ListInbox returns every message the user sent or received, newest first.
func (r *messageRepository) ListInbox(ctx context.Context, userID uint64) ([]model.InboxRow, error) {
	var rows []model.InboxRow
	if err := r.db.WithContext(ctx).
		Table("messages AS m").
		Select(`m.id, m.post_id, m.sender_id, m.receiver_id, m.message, m.is_read, m.created_at,
			p.title AS post_title, p.price, p.image_url,
			u1.username AS sender_username, u2.username AS receiver_username`).
		Joins("JOIN posts p ON p.id = m.post_id").
		Joins("JOIN users u1 ON u1.id = m.sender_id").
		Joins("JOIN users u2 ON u2.id = m.receiver_id").
		Where("m.sender_id = ? OR m.receiver_id = ?", userID, userID).
		Order("m.created_at DESC").
		Order("m.id DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListThread returns the messages exchanged between two users about one post, oldest first.
func (r *messageRepository) ListThread(ctx context.Context, postID, userID, otherUserID uint64) ([]model.ThreadMessage, error) {
	var rows []model.ThreadMessage
	if err := r.threadQuery(ctx).
		Where("m.post_id = ?", postID).
		Where("(m.sender_id = ? AND m.receiver_id = ?) OR (m.sender_id = ? AND m.receiver_id = ?)",
			userID, otherUserID, otherUserID, userID).
		Order("m.created_at ASC").
		Order("m.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *messageRepository) MarkThreadRead(ctx context.Context, postID, fromUserID, toUserID uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("post_id = ? AND sender_id = ? AND receiver_id = ? AND is_read = ?", postID, fromUserID, toUserID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, userID uint64) (int64, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}
