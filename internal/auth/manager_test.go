// AngelaMos | 2026
// manager_test.go

package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/journal-backend/internal/config"
	"github.com/carterperez-dev/templates/journal-backend/internal/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenTTL:  2 * time.Hour,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		SecretBytes:     32,
		KeepSessions:    5,
	}
}

func newTestManager(t *testing.T) (*Manager, *memoryRepo, *fakeClock) {
	t.Helper()
	repo := newMemoryRepo()
	clock := newFakeClock()
	return NewManager(repo, testAuthConfig(), WithClock(clock.Now)), repo, clock
}

var testClient = ClientInfo{UserAgent: "test-agent", IPAddress: "127.0.0.1"}

func TestIssueThenValidate(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)
	assert.Len(t, pair.AccessSecret, 64)
	assert.NotEqual(t, pair.AccessSecret, pair.RefreshSecret)

	userID, err := m.ValidateAccess(ctx, pair.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-a", userID)

	rows := repo.all()
	require.Len(t, rows, 1)
	assert.Equal(t, core.DigestSecret(pair.AccessSecret), *rows[0].AccessDigest)
	assert.Equal(t, core.DigestSecret(pair.RefreshSecret), *rows[0].RefreshDigest)
	assert.NotEqual(t, pair.AccessSecret, *rows[0].AccessDigest)
	assert.Equal(t, pair.FamilyID, rows[0].FamilyID)
}

func TestIssueStartsIndependentFamilies(t *testing.T) {
	m, _, _ := newTestManager(t)

	p1, err := m.Issue(context.Background(), "user-a", testClient)
	require.NoError(t, err)
	p2, err := m.Issue(context.Background(), "user-a", testClient)
	require.NoError(t, err)

	assert.NotEqual(t, p1.FamilyID, p2.FamilyID)
}

func TestValidateAccessFailures(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.ValidateAccess(context.Background(), "  ")
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = m.ValidateAccess(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestRotateReuseRevokesFamily(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	p0, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	p1, err := m.Rotate(ctx, p0.RefreshSecret, testClient)
	require.NoError(t, err)
	assert.Equal(t, p0.FamilyID, p1.FamilyID)

	userID, err := m.ValidateAccess(ctx, p1.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-a", userID)

	_, err = m.ValidateAccess(ctx, p0.AccessSecret)
	require.ErrorIs(t, err, ErrInvalidOrExpired, "rotated-away access secret must die")

	_, err = m.Rotate(ctx, p0.RefreshSecret, testClient)
	require.ErrorIs(t, err, ErrReuseDetected)

	_, err = m.ValidateAccess(ctx, p1.AccessSecret)
	require.ErrorIs(t, err, ErrInvalidOrExpired)

	_, err = m.Rotate(ctx, p1.RefreshSecret, testClient)
	require.ErrorIs(t, err, ErrReuseDetected, "family is dead, newest refresh is now revoked too")
}

func TestRotatePreservesFamilyAcrossChain(t *testing.T) {
	m, repo, clock := newTestManager(t)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)
	family := pair.FamilyID

	for range 5 {
		clock.Advance(time.Minute)
		pair, err = m.Rotate(ctx, pair.RefreshSecret, testClient)
		require.NoError(t, err)
		assert.Equal(t, family, pair.FamilyID)
	}

	rows := repo.all()
	require.Len(t, rows, 6)
	live := 0
	for i, row := range rows {
		assert.Equal(t, family, row.FamilyID)
		if i == 0 {
			assert.Nil(t, row.PreviousID)
		} else {
			require.NotNil(t, row.PreviousID)
			assert.Equal(t, rows[i-1].ID, *row.PreviousID)
		}
		if !row.IsRevoked() {
			live++
		}
	}
	assert.Equal(t, 1, live)
}

func TestRotateFailureKinds(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	_, err := m.Rotate(ctx, "", testClient)
	require.ErrorIs(t, err, ErrMissingToken)

	_, err = m.Rotate(ctx, "unknown", testClient)
	require.ErrorIs(t, err, ErrInvalidOrExpired)

	pair, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)

	clock.Advance(testAuthConfig().RefreshTokenTTL)
	_, err = m.Rotate(ctx, pair.RefreshSecret, testClient)
	require.ErrorIs(t, err, ErrInvalidOrExpired, "refresh expiring exactly now is expired")
}

func TestAccessAndRefreshExpireIndependently(t *testing.T) {
	m, repo, clock := newTestManager(t)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)

	clock.Advance(testAuthConfig().AccessTokenTTL + time.Second)

	_, err = m.ValidateAccess(ctx, pair.AccessSecret)
	require.ErrorIs(t, err, ErrInvalidOrExpired)

	rec := repo.all()[0]
	now := clock.Now()
	assert.False(t, rec.AccessValid(now))
	assert.True(t, rec.RefreshValid(now))
	assert.True(t, rec.Active(now))

	clock.Advance(testAuthConfig().RefreshTokenTTL)
	now = clock.Now()
	assert.False(t, rec.RefreshValid(now))
	assert.False(t, rec.Active(now))
}

func TestRotateAfterAccessExpiry(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)

	clock.Advance(testAuthConfig().AccessTokenTTL + time.Minute)

	_, err = m.ValidateAccess(ctx, pair.AccessSecret)
	require.ErrorIs(t, err, ErrInvalidOrExpired)

	next, err := m.Rotate(ctx, pair.RefreshSecret, testClient)
	require.NoError(t, err)

	userID, err := m.ValidateAccess(ctx, next.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-a", userID)
}

func TestRevokeFamilyIsScoped(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)
	a1, err := m.Rotate(ctx, a.RefreshSecret, testClient)
	require.NoError(t, err)
	b, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)

	n, err := m.RevokeFamily(ctx, a.FamilyID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the live member needed revoking")

	for _, row := range repo.all() {
		if row.FamilyID == a.FamilyID {
			assert.True(t, row.IsRevoked())
		} else {
			assert.False(t, row.IsRevoked())
		}
	}

	_, err = m.ValidateAccess(ctx, a1.AccessSecret)
	require.ErrorIs(t, err, ErrInvalidOrExpired)
	_, err = m.ValidateAccess(ctx, b.AccessSecret)
	require.NoError(t, err)
}

func TestCleanupOldKeepsNewest(t *testing.T) {
	m, repo, clock := newTestManager(t)
	ctx := context.Background()

	var first Pair
	for i := range 6 {
		p, err := m.Issue(ctx, "user-a", testClient)
		require.NoError(t, err)
		if i == 0 {
			first = p
		}
		clock.Advance(time.Second)
	}
	_, err := m.Issue(ctx, "user-b", testClient)
	require.NoError(t, err)

	n, err := m.CleanupOld(ctx, "user-a", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	live, revoked := 0, 0
	for _, row := range repo.all() {
		if row.UserID != "user-a" {
			assert.False(t, row.IsRevoked())
			continue
		}
		if row.IsRevoked() {
			revoked++
			assert.Equal(t, first.FamilyID, row.FamilyID, "oldest record goes first")
		} else {
			live++
		}
	}
	assert.Equal(t, 5, live)
	assert.Equal(t, 1, revoked)
	assert.Len(t, repo.all(), 7)
}

func TestCleanupOldNegativeKeepRevokesAll(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)

	n, err := m.CleanupOld(ctx, "user-a", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLogoutRevokesOnlyThatRecord(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	a, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)
	b, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)

	rec, err := m.Logout(ctx, a.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, a.FamilyID, rec.FamilyID)

	_, err = m.ValidateAccess(ctx, a.AccessSecret)
	require.ErrorIs(t, err, ErrInvalidOrExpired)
	_, err = m.ValidateAccess(ctx, b.AccessSecret)
	require.NoError(t, err)

	_, err = m.Logout(ctx, a.AccessSecret)
	require.ErrorIs(t, err, ErrInvalidOrExpired)

	_, err = m.Logout(ctx, "")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestRevokeAllForUserAndSessions(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	for range 3 {
		_, err := m.Issue(ctx, "user-a", testClient)
		require.NoError(t, err)
	}
	other, err := m.Issue(ctx, "user-b", testClient)
	require.NoError(t, err)

	sessions, err := m.ActiveSessions(ctx, "user-a")
	require.NoError(t, err)
	assert.Len(t, sessions, 3)

	n, err := m.RevokeAllForUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	sessions, err = m.ActiveSessions(ctx, "user-a")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = m.ValidateAccess(ctx, other.AccessSecret)
	require.NoError(t, err)
}

func TestConcurrentRotationHasSingleWinner(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	pair, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)

	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := m.Rotate(ctx, pair.RefreshSecret, testClient)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.True(t,
			errors.Is(err, ErrInvalidOrExpired) || errors.Is(err, ErrReuseDetected),
			"unexpected loser error: %v", err)
	}

	live := 0
	for _, row := range repo.all() {
		if !row.IsRevoked() {
			live++
		}
	}
	assert.LessOrEqual(t, live, 1, "one refresh secret must never yield two live pairs")
}

func TestDetectTokenReuse(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	p0, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)

	rows := repo.all()
	reused, err := m.reuse.DetectTokenReuse(ctx, &rows[0])
	require.NoError(t, err)
	assert.False(t, reused, "a lone live record is not reuse")

	_, err = m.Rotate(ctx, p0.RefreshSecret, testClient)
	require.NoError(t, err)

	rows = repo.all()
	repo.forceLive(rows[0].ID)

	reused, err = m.reuse.DetectTokenReuse(ctx, &rows[1])
	require.NoError(t, err)
	assert.True(t, reused)

	for _, row := range repo.all() {
		assert.True(t, row.IsRevoked())
	}
}

func TestRotateRefusesFamilyWithTwoLiveRecords(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	p0, err := m.Issue(ctx, "user-a", testClient)
	require.NoError(t, err)
	p1, err := m.Rotate(ctx, p0.RefreshSecret, testClient)
	require.NoError(t, err)

	repo.forceLive(repo.all()[0].ID)

	_, err = m.Rotate(ctx, p1.RefreshSecret, testClient)
	require.ErrorIs(t, err, ErrReuseDetected)
}

type collidingRepo struct {
	*memoryRepo
}

func (collidingRepo) Create(context.Context, *TokenPair) error {
	return ErrIntegrityViolation
}

func TestIssueSurfacesIntegrityViolation(t *testing.T) {
	m := NewManager(collidingRepo{newMemoryRepo()}, testAuthConfig())

	_, err := m.Issue(context.Background(), "user-a", testClient)
	require.ErrorIs(t, err, ErrIntegrityViolation)
	assert.Equal(t, 500, toAppError(err).StatusCode)
}

func TestNewManagerClampsSecretBytes(t *testing.T) {
	cfg := testAuthConfig()
	cfg.SecretBytes = 8
	m := NewManager(newMemoryRepo(), cfg)

	pair, err := m.Issue(context.Background(), "user-a", testClient)
	require.NoError(t, err)
	assert.Len(t, pair.RefreshSecret, 2*core.SecretBytes)
}

func TestAuthenticateMapsErrors(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Authenticate(context.Background(), "")
	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "MISSING_TOKEN", appErr.Code)

	_, err = m.Authenticate(context.Background(), "bogus")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "TOKEN_INVALID", appErr.Code)
}

func TestTokenPairValidity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)
	d := "digest"

	tests := []struct {
		name          string
		pair          TokenPair
		access, fresh bool
	}{
		{name: "both live", pair: TokenPair{AccessDigest: &d, RefreshDigest: &d, AccessExpiresAt: &future, RefreshExpiresAt: &future}, access: true, fresh: true},
		{name: "access expired", pair: TokenPair{AccessDigest: &d, RefreshDigest: &d, AccessExpiresAt: &past, RefreshExpiresAt: &future}, fresh: true},
		{name: "expiry equal to now is expired", pair: TokenPair{AccessDigest: &d, AccessExpiresAt: &now}},
		{name: "missing expiry never expires", pair: TokenPair{AccessDigest: &d, RefreshDigest: &d}, access: true, fresh: true},
		{name: "revoked", pair: TokenPair{AccessDigest: &d, RefreshDigest: &d, RevokedAt: &past}},
		{name: "no refresh digest", pair: TokenPair{AccessDigest: &d, RefreshExpiresAt: &future}, access: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.access, tt.pair.AccessValid(now))
			assert.Equal(t, tt.fresh, tt.pair.RefreshValid(now))
			assert.Equal(t, tt.access || tt.fresh, tt.pair.Active(now))
		})
	}
}
