package model

import "time"

type PostStatus string

const (
	PostStatusActive PostStatus = "active"
	PostStatusSold   PostStatus = "sold"
)

func (s PostStatus) Valid() bool {
	return s == PostStatusActive || s == PostStatusSold
}

// Allowed values for the regalia attributes of a post.
var (
	ItemTypes  = []string{"Gown", "Cap", "Stole", "Set"}
	Sizes      = []string{"XS", "S", "M", "L", "XL", "XXL"}
	Conditions = []string{"New", "Like New", "Worn"}
)

type Post struct {
	ID              uint64     `gorm:"primaryKey;autoIncrement"`
	UserID          uint64     `gorm:"column:user_id;not null;index:idx_posts_user_id"`
	Owner           *User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Title           string     `gorm:"size:50;not null"`
	ItemType        string     `gorm:"column:item_type;size:16;not null;index:idx_posts_item_type"`
	Size            string     `gorm:"column:size;size:8;not null;index:idx_posts_size"`
	ConditionStatus string     `gorm:"column:condition_status;size:16;not null;index:idx_posts_condition"`
	Price           float64    `gorm:"type:decimal(10,2);not null;index:idx_posts_price"`
	ContactInfo     string     `gorm:"column:contact_info;type:text;not null"`
	ImageURL        *string    `gorm:"column:image_url;size:512"`
	Status          PostStatus `gorm:"size:16;not null;default:active;index:idx_posts_status"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

func (Post) TableName() string {
	return "posts"
}

// PostWithSeller is a post joined with its owner's username.
type PostWithSeller struct {
	Post
	SellerUsername string `gorm:"column:seller_username"`
}
