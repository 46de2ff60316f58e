package model

import "time"

type VisitorLog struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	PageURL   string    `gorm:"column:page_url;size:255"`
	IPAddress string    `gorm:"column:ip_address;size:45"`
	UserAgent string    `gorm:"column:user_agent;type:text"`
	Referrer  string    `gorm:"column:referrer;size:255"`
	VisitedAt time.Time `gorm:"column:visited_at;autoCreateTime"`
}

func (VisitorLog) TableName() string {
	return "visitor_logs"
}
