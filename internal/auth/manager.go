// AngelaMos | 2026
// manager.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/journal-backend/internal/config"
	"github.com/carterperez-dev/templates/journal-backend/internal/core"
)

// Manager creates, validates, rotates and revokes token pairs. It is the
// only component that writes to the credential store.
type Manager struct {
	repo  Repository
	reuse *ReuseDetector
	cfg   config.AuthConfig
	now   func() time.Time
}

type ManagerOption func(*Manager)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(
	repo Repository,
	cfg config.AuthConfig,
	opts ...ManagerOption,
) *Manager {
	if cfg.SecretBytes < core.SecretBytes {
		cfg.SecretBytes = core.SecretBytes
	}

	m := &Manager{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.reuse = NewReuseDetector(repo, m.now)
	return m
}

// Issue starts a new family for userID and returns its raw secrets.
func (m *Manager) Issue(
	ctx context.Context,
	userID string,
	client ClientInfo,
) (Pair, error) {
	ctx, span := core.StartSpan(ctx, "auth.Issue",
		attribute.String("user.id", userID))
	defer span.End()

	record, pair, err := m.newPair(userID, uuid.NewString(), client)
	if err != nil {
		core.SetSpanError(ctx, err)
		return Pair{}, err
	}

	if err := m.repo.Create(ctx, record); err != nil {
		core.SetSpanError(ctx, err)
		return Pair{}, fmt.Errorf("issue: %w", err)
	}

	return pair, nil
}

// ValidateAccess returns the user owning rawAccess. Unknown, expired and
// revoked secrets all fail with ErrInvalidOrExpired.
func (m *Manager) ValidateAccess(
	ctx context.Context,
	rawAccess string,
) (string, error) {
	record, err := m.lookupAccess(ctx, rawAccess)
	if err != nil {
		return "", err
	}
	return record.UserID, nil
}

func (m *Manager) lookupAccess(
	ctx context.Context,
	rawAccess string,
) (*TokenPair, error) {
	rawAccess = strings.TrimSpace(rawAccess)
	if rawAccess == "" {
		return nil, ErrMissingToken
	}

	record, err := m.repo.FindByAccessDigest(ctx, core.DigestSecret(rawAccess))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidOrExpired
		}
		return nil, fmt.Errorf("validate access: %w", err)
	}

	if !record.AccessValid(m.now()) {
		return nil, ErrInvalidOrExpired
	}

	return record, nil
}

// Rotate exchanges a refresh secret for a new pair in the same family.
// Presenting a refresh secret whose record is already revoked revokes the
// whole family and fails with ErrReuseDetected.
func (m *Manager) Rotate(
	ctx context.Context,
	rawRefresh string,
	client ClientInfo,
) (Pair, error) {
	ctx, span := core.StartSpan(ctx, "auth.Rotate")
	defer span.End()

	pair, err := m.rotate(ctx, rawRefresh, client)
	if err != nil {
		core.SetSpanError(ctx, err)
	}
	return pair, err
}

func (m *Manager) rotate(
	ctx context.Context,
	rawRefresh string,
	client ClientInfo,
) (Pair, error) {
	rawRefresh = strings.TrimSpace(rawRefresh)
	if rawRefresh == "" {
		return Pair{}, ErrMissingToken
	}

	current, err := m.repo.FindByRefreshDigest(ctx, core.DigestSecret(rawRefresh))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Pair{}, ErrInvalidOrExpired
		}
		return Pair{}, fmt.Errorf("rotate: %w", err)
	}

	core.AddSpanEvent(ctx, "token_pair.found",
		attribute.String("user.id", current.UserID),
		attribute.String("family.id", current.FamilyID))

	if current.IsRevoked() {
		return Pair{}, m.reuse.HandleRevokedPresentation(ctx, current)
	}

	now := m.now()
	if !current.RefreshValid(now) {
		return Pair{}, ErrInvalidOrExpired
	}

	reused, err := m.reuse.DetectTokenReuse(ctx, current)
	if err != nil {
		return Pair{}, fmt.Errorf("rotate: %w", err)
	}
	if reused {
		return Pair{}, ErrReuseDetected
	}

	if client.UserAgent == "" && client.IPAddress == "" {
		client = ClientInfo{UserAgent: current.UserAgent, IPAddress: current.IPAddress}
	}

	next, pair, err := m.newPair(current.UserID, current.FamilyID, client)
	if err != nil {
		return Pair{}, err
	}

	if err := m.repo.Rotate(ctx, current.ID, next, now); err != nil {
		if errors.Is(err, errRotationConflict) {
			return Pair{}, ErrInvalidOrExpired
		}
		return Pair{}, fmt.Errorf("rotate: %w", err)
	}

	return pair, nil
}

// Revoke sets revokedAt on exactly one record.
func (m *Manager) Revoke(ctx context.Context, record *TokenPair) error {
	if err := m.repo.RevokeByID(ctx, record.ID, m.now()); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

func (m *Manager) RevokeFamily(ctx context.Context, familyID string) (int64, error) {
	ctx, span := core.StartSpan(ctx, "auth.RevokeFamily",
		attribute.String("family.id", familyID))
	defer span.End()

	n, err := m.repo.RevokeByFamilyID(ctx, familyID, m.now())
	if err != nil {
		core.SetSpanError(ctx, err)
		return 0, fmt.Errorf("revoke family: %w", err)
	}
	return n, nil
}

func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := m.repo.RevokeAllForUser(ctx, userID, m.now())
	if err != nil {
		return 0, fmt.Errorf("revoke all: %w", err)
	}
	return n, nil
}

// CleanupOld keeps the keep newest unrevoked records of userID and revokes
// the rest. Nothing is deleted.
func (m *Manager) CleanupOld(
	ctx context.Context,
	userID string,
	keep int,
) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	n, err := m.repo.RevokeAllButNewest(ctx, userID, keep, m.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup old tokens: %w", err)
	}
	return n, nil
}

func (m *Manager) ActiveSessions(ctx context.Context, userID string) ([]TokenPair, error) {
	pairs, err := m.repo.ListActiveForUser(ctx, userID, m.now())
	if err != nil {
		return nil, fmt.Errorf("active sessions: %w", err)
	}
	return pairs, nil
}

// Logout revokes the record behind rawAccess and returns it.
func (m *Manager) Logout(ctx context.Context, rawAccess string) (*TokenPair, error) {
	record, err := m.lookupAccess(ctx, rawAccess)
	if err != nil {
		return nil, err
	}

	if err := m.Revoke(ctx, record); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidOrExpired
		}
		return nil, fmt.Errorf("logout: %w", err)
	}

	return record, nil
}

func (m *Manager) newPair(
	userID, familyID string,
	client ClientInfo,
) (*TokenPair, Pair, error) {
	access, err := core.GenerateSecret(m.cfg.SecretBytes)
	if err != nil {
		return nil, Pair{}, fmt.Errorf("generate access secret: %w", err)
	}

	refresh, err := core.GenerateSecret(m.cfg.SecretBytes)
	if err != nil {
		return nil, Pair{}, fmt.Errorf("generate refresh secret: %w", err)
	}

	now := m.now()
	accessExp := now.Add(m.cfg.AccessTokenTTL)
	refreshExp := now.Add(m.cfg.RefreshTokenTTL)
	accessDigest := core.DigestSecret(access)
	refreshDigest := core.DigestSecret(refresh)

	record := &TokenPair{
		ID:               uuid.NewString(),
		UserID:           userID,
		FamilyID:         familyID,
		AccessDigest:     &accessDigest,
		RefreshDigest:    &refreshDigest,
		AccessExpiresAt:  &accessExp,
		RefreshExpiresAt: &refreshExp,
		UserAgent:        client.UserAgent,
		IPAddress:        client.IPAddress,
		CreatedAt:        now,
	}

	return record, Pair{
		AccessSecret:     access,
		RefreshSecret:    refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		FamilyID:         familyID,
	}, nil
}

// Authenticate is ValidateAccess with failures already mapped to HTTP
// errors, for the session boundary middleware.
func (m *Manager) Authenticate(ctx context.Context, rawAccess string) (string, error) {
	userID, err := m.ValidateAccess(ctx, rawAccess)
	if err != nil {
		return "", toAppError(err)
	}
	return userID, nil
}
