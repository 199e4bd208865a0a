package domain

import "time"

type ChatType string

const (
	ChatTypeUser   ChatType = "user"
	ChatTypeSystem ChatType = "system"
)

type ChatMessage struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"not null"`
	Content   string    `json:"content" gorm:"not null"`
	Type      ChatType  `json:"type" gorm:"not null;default:user"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
