// AngelaMos | 2026
// service.go

package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/journal-backend/internal/core"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) CreateChat(
	ctx context.Context,
	userID string,
	req CreateChatRequest,
) (*Chat, error) {
	if userID == "" {
		return nil, fmt.Errorf("create chat: %w", core.ErrUnauthorized)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultTitle(s.now())
	}
	if len([]rune(title)) > MaxTitleLength {
		return nil, fmt.Errorf("create chat: %w", core.ErrInvalidInput)
	}

	chat := &Chat{
		ID:     uuid.New().String(),
		UserID: userID,
		Title:  title,
	}

	if err := s.repo.Create(ctx, chat); err != nil {
		return nil, err
	}

	return chat, nil
}

func (s *Service) ListChats(
	ctx context.Context,
	userID string,
	params PageParams,
) ([]Chat, int, error) {
	params.Normalize()
	return s.repo.ListByUser(ctx, userID, params)
}

func (s *Service) ListSessions(ctx context.Context, userID string) ([]Session, error) {
	return s.repo.ListSessions(ctx, userID)
}

func (s *Service) DeleteChat(ctx context.Context, userID, chatID string) error {
	return s.repo.Delete(ctx, chatID, userID)
}

func (s *Service) AppendMessage(
	ctx context.Context,
	userID, chatID string,
	req AppendMessageRequest,
) (*Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" || len([]rune(content)) > MaxContentLength {
		return nil, fmt.Errorf("append message: %w", core.ErrInvalidInput)
	}

	kind := SenderUser
	if req.SenderKind != "" {
		kind = SenderKind(req.SenderKind)
	}

	msg := &Message{
		ID:         uuid.New().String(),
		ChatID:     chatID,
		SenderID:   userID,
		SenderKind: kind,
		Content:    content,
	}

	if err := s.repo.AppendMessage(ctx, userID, msg); err != nil {
		return nil, err
	}

	return msg, nil
}

func (s *Service) ListMessages(
	ctx context.Context,
	userID, chatID string,
	params PageParams,
) ([]Message, int, error) {
	if _, err := s.repo.GetForUser(ctx, chatID, userID); err != nil {
		return nil, 0, err
	}

	params.Normalize()
	return s.repo.ListMessages(ctx, chatID, params)
}

func (s *Service) DeleteMessage(ctx context.Context, userID, chatID, messageID string) error {
	return s.repo.DeleteMessage(ctx, userID, chatID, messageID)
}
