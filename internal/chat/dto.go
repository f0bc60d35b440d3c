// AngelaMos | 2026
// dto.go

package chat

import (
	"time"
)

const (
	MaxTitleLength   = 120
	MaxContentLength = 10000

	PreviewLength = 100

	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps (page-1)*page_size far from int overflow.
	maxPage = 10000
)

type CreateChatRequest struct {
	Title string `json:"title" validate:"max=120"`
}

type AppendMessageRequest struct {
	Content    string `json:"content"               validate:"required,min=1,max=10000"`
	SenderKind string `json:"sender_kind,omitempty" validate:"omitempty,oneof=USER ASSISTANT"`
}

type ChatResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageResponse struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chat_id"`
	SenderKind SenderKind `json:"sender_kind"`
	Content    string     `json:"content"`
	SentAt     time.Time  `json:"sent_at"`
}

type SessionResponse struct {
	ChatID        string    `json:"chat_id"`
	Title         string    `json:"title"`
	LastMessageAt time.Time `json:"last_message_at"`
	MessageCount  int       `json:"message_count"`
	Preview       string    `json:"preview,omitempty"`
}

// PageParams pages both chat and message listings.
type PageParams struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

func (p *PageParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

func (p *PageParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// DefaultTitle names an untitled chat after the minute it was opened.
func DefaultTitle(now time.Time) string {
	return "Chat " + now.Format("2006-01-02 15:04")
}

// Truncate shortens s to at most limit runes, ending in "..." when cut.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func ToChatResponse(c *Chat) ChatResponse {
	return ChatResponse{
		ID:        c.ID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func ToChatResponseList(chats []Chat) []ChatResponse {
	out := make([]ChatResponse, len(chats))
	for i := range chats {
		out[i] = ToChatResponse(&chats[i])
	}
	return out
}

func ToMessageResponse(m *Message) MessageResponse {
	return MessageResponse{
		ID:         m.ID,
		ChatID:     m.ChatID,
		SenderKind: m.SenderKind,
		Content:    m.Content,
		SentAt:     m.SentAt,
	}
}

func ToMessageResponseList(msgs []Message) []MessageResponse {
	out := make([]MessageResponse, len(msgs))
	for i := range msgs {
		out[i] = ToMessageResponse(&msgs[i])
	}
	return out
}

func ToSessionResponseList(sessions []Session) []SessionResponse {
	out := make([]SessionResponse, len(sessions))
	for i, sess := range sessions {
		out[i] = SessionResponse{
			ChatID:        sess.ChatID,
			Title:         sess.Title,
			LastMessageAt: sess.LastMessageAt,
			MessageCount:  sess.MessageCount,
			Preview:       Truncate(sess.Preview, PreviewLength),
		}
	}
	return out
}
