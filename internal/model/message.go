package model

import (
	"time"
)

// Message is a single chat line. Rows are append-only: the store assigns ID and
// CreatedAt on insert and nothing updates or deletes them afterwards.
type Message struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement;index:idx_messages_created_id,priority:2" json:"id"`
	Username string `gorm:"type:varchar(255);not null" json:"username"`
	Content  string `gorm:"type:text;not null" json:"content"`

	// Filled by the database (now()) and read back through RETURNING.
	CreatedAt time.Time `gorm:"not null;default:now();index:idx_messages_created_id,priority:1;autoCreateTime:false" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// Before reports whether m sorts before other in history order:
// created_at ascending, ties broken by id.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
