package model

import "time"

type Message struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	SenderID   uint64    `gorm:"column:sender_id;not null;index:idx_messages_sender_id"`
	ReceiverID uint64    `gorm:"column:receiver_id;not null;index:idx_messages_receiver_id"`
	PostID     uint64    `gorm:"column:post_id;not null;index:idx_messages_post_id"`
	Body       string    `gorm:"column:message;type:text;not null"`
	IsRead     bool      `gorm:"column:is_read;not null;default:false;index:idx_messages_is_read"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_messages_created_at"`

	Sender   *User `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE"`
	Receiver *User `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE"`
	Post     *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string {
	return "messages"
}

// ThreadMessage is a message joined with the sender's username.
type ThreadMessage struct {
	ID             uint64    `gorm:"column:id"`
	PostID         uint64    `gorm:"column:post_id"`
	SenderID       uint64    `gorm:"column:sender_id"`
	ReceiverID     uint64    `gorm:"column:receiver_id"`
	Body           string    `gorm:"column:message"`
	IsRead         bool      `gorm:"column:is_read"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	SenderUsername string    `gorm:"column:sender_username"`
}

// InboxRow is one message of a user's inbox joined with post and user metadata.
type InboxRow struct {
	ID               uint64    `gorm:"column:id"`
	PostID           uint64    `gorm:"column:post_id"`
	SenderID         uint64    `gorm:"column:sender_id"`
	ReceiverID       uint64    `gorm:"column:receiver_id"`
	Body             string    `gorm:"column:message"`
	IsRead           bool      `gorm:"column:is_read"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	PostTitle        string    `gorm:"column:post_title"`
	Price            float64   `gorm:"column:price"`
	ImageURL         *string   `gorm:"column:image_url"`
	SenderUsername   string    `gorm:"column:sender_username"`
	ReceiverUsername string    `gorm:"column:receiver_username"`
}
