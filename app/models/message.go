package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one row of the append-only chat log.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"-"`
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	MentorID  string    `db:"mentor_id" json:"mentorId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
