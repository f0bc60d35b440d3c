// AngelaMos | 2026
// entity.go

package chat

import (
	"time"
)

type SenderKind string

const (
	SenderUser      SenderKind = "USER"
	SenderAssistant SenderKind = "ASSISTANT"
)

type Chat struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Message struct {
	ID         string     `db:"id"`
	ChatID     string     `db:"chat_id"`
	SenderID   string     `db:"sender_id"`
	SenderKind SenderKind `db:"sender_kind"`
	Content    string     `db:"content"`
	SentAt     time.Time  `db:"sent_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

// Session summarises a chat that holds at least one message. Preview is
// the first USER message, untruncated.
type Session struct {
	ChatID        string    `db:"chat_id"`
	Title         string    `db:"title"`
	LastMessageAt time.Time `db:"last_message_at"`
	MessageCount  int       `db:"message_count"`
	Preview       string    `db:"preview"`
}
