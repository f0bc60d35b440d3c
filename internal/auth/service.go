// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/templates/journal-backend/internal/core"
)

type UserInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	BirthDate    *time.Time
	CreatedAt    time.Time
}

type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	BirthDate    *time.Time
}

// UserProvider is the slice of the user package the auth flows need.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(ctx context.Context, u NewUser) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

type Service struct {
	manager      *Manager
	userProvider UserProvider
	attempts     *AttemptLimiter
	keepSessions int
}

func NewService(
	manager *Manager,
	userProvider UserProvider,
	attempts *AttemptLimiter,
	keepSessions int,
) *Service {
	return &Service{
		manager:      manager,
		userProvider: userProvider,
		attempts:     attempts,
		keepSessions: keepSessions,
	}
}

func (s *Service) Signup(
	ctx context.Context,
	req SignupRequest,
	client ClientInfo,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, NewUser{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		BirthDate:    req.BirthDate,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(ctx, user, client)
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	client ClientInfo,
) (*AuthResponse, error) {
	if err := s.attempts.Check(ctx, req.Email); err != nil {
		return nil, err
	}

	user, err := s.userProvider.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
			s.attempts.RecordFailure(ctx, req.Email)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(req.Password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		s.attempts.RecordFailure(ctx, req.Email)
		return nil, ErrInvalidCredentials
	}

	s.attempts.Reset(ctx, req.Email)

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.userProvider.UpdatePassword(ctx, user.ID, newHash)
	}

	resp, err := s.issue(ctx, user, client)
	if err != nil {
		return nil, err
	}

	revoked, err := s.manager.CleanupOld(ctx, user.ID, s.keepSessions)
	if err != nil {
		slog.ErrorContext(ctx, "cleanup old sessions", "user_id", user.ID, "error", err)
	} else if revoked > 0 {
		slog.WarnContext(ctx, "old sessions revoked", "user_id", user.ID, "revoked", revoked)
	}

	return resp, nil
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken string,
	client ClientInfo,
) (*TokenResponse, error) {
	pair, err := s.manager.Rotate(ctx, refreshToken, client)
	if err != nil {
		return nil, err
	}

	tokens := toTokenResponse(pair, time.Now())
	return &tokens, nil
}

func (s *Service) Logout(ctx context.Context, accessToken string) error {
	if _, err := s.manager.Logout(ctx, accessToken); err != nil {
		return err
	}
	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	n, err := s.manager.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "all sessions revoked", "user_id", userID, "revoked", n)
	return nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	pairs, err := s.manager.ActiveSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]SessionInfo, 0, len(pairs))
	for _, p := range pairs {
		sessions = append(sessions, toSessionInfo(p))
	}

	return sessions, nil
}

// RevokeSession revokes a whole family, provided userID owns a live record
// in it.
func (s *Service) RevokeSession(
	ctx context.Context,
	userID, familyID string,
) error {
	pairs, err := s.manager.ActiveSessions(ctx, userID)
	if err != nil {
		return err
	}

	owned := false
	for _, p := range pairs {
		if p.FamilyID == familyID {
			owned = true
			break
		}
	}
	if !owned {
		return fmt.Errorf("revoke session: %w", core.ErrNotFound)
	}

	if _, err := s.manager.RevokeFamily(ctx, familyID); err != nil {
		return err
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) issue(
	ctx context.Context,
	user *UserInfo,
	client ClientInfo,
) (*AuthResponse, error) {
	pair, err := s.manager.Issue(ctx, user.ID, client)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	return &AuthResponse{
		User:   toUserResponse(user),
		Tokens: toTokenResponse(pair, time.Now()),
	}, nil
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		BirthDate: u.BirthDate,
		CreatedAt: u.CreatedAt,
	}
}
