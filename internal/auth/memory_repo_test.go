// AngelaMos | 2026
// memory_repo_test.go

package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/templates/journal-backend/internal/core"
)

// memoryRepo is a Repository backed by a map, with the same uniqueness
// and compare-and-set rules as the Postgres schema.
type memoryRepo struct {
	mu    sync.Mutex
	pairs map[string]*TokenPair
	order []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{pairs: make(map[string]*TokenPair)}
}

func (r *memoryRepo) Create(_ context.Context, pair *TokenPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(pair)
}

func (r *memoryRepo) insertLocked(pair *TokenPair) error {
	if !pair.hasDigest() {
		return fmt.Errorf("insert token pair: digest required")
	}
	for _, existing := range r.pairs {
		if sameDigest(existing.AccessDigest, pair.AccessDigest) ||
			sameDigest(existing.RefreshDigest, pair.RefreshDigest) {
			return fmt.Errorf("insert token pair: %w", ErrIntegrityViolation)
		}
	}

	cp := *pair
	cp.UpdatedAt = cp.CreatedAt
	pair.UpdatedAt = cp.CreatedAt
	r.pairs[cp.ID] = &cp
	r.order = append(r.order, cp.ID)
	return nil
}

func sameDigest(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (r *memoryRepo) find(match func(*TokenPair) bool) (*TokenPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pairs {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *memoryRepo) FindByAccessDigest(_ context.Context, digest string) (*TokenPair, error) {
	return r.find(func(p *TokenPair) bool { return p.AccessDigest != nil && *p.AccessDigest == digest })
}

func (r *memoryRepo) FindByRefreshDigest(_ context.Context, digest string) (*TokenPair, error) {
	return r.find(func(p *TokenPair) bool { return p.RefreshDigest != nil && *p.RefreshDigest == digest })
}

func (r *memoryRepo) Rotate(_ context.Context, previousID string, next *TokenPair, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.pairs[previousID]
	if !ok || prev.IsRevoked() ||
		(prev.RefreshExpiresAt != nil && !prev.RefreshExpiresAt.After(now)) {
		return errRotationConflict
	}

	next.PreviousID = &previousID
	if err := r.insertLocked(next); err != nil {
		return err
	}

	t := now
	prev.RevokedAt = &t
	prev.UpdatedAt = now
	return nil
}

func (r *memoryRepo) revokeWhere(now time.Time, match func(*TokenPair) bool) int64 {
	var n int64
	for _, p := range r.pairs {
		if p.RevokedAt == nil && match(p) {
			t := now
			p.RevokedAt = &t
			p.UpdatedAt = now
			n++
		}
	}
	return n
}

func (r *memoryRepo) RevokeByID(_ context.Context, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.revokeWhere(now, func(p *TokenPair) bool { return p.ID == id }) == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *memoryRepo) RevokeByFamilyID(_ context.Context, familyID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeWhere(now, func(p *TokenPair) bool { return p.FamilyID == familyID }), nil
}

func (r *memoryRepo) RevokeAllForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeWhere(now, func(p *TokenPair) bool { return p.UserID == userID }), nil
}

func (r *memoryRepo) RevokeAllButNewest(_ context.Context, userID string, keep int, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var live []*TokenPair
	for _, p := range r.pairs {
		if p.UserID == userID && p.RevokedAt == nil {
			live = append(live, p)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].ID > live[j].ID
		}
		return live[i].CreatedAt.After(live[j].CreatedAt)
	})

	var n int64
	for i := keep; i < len(live); i++ {
		t := now
		live[i].RevokedAt = &t
		live[i].UpdatedAt = now
		n++
	}
	return n, nil
}

func (r *memoryRepo) CountLiveInFamily(_ context.Context, familyID, excludeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, p := range r.pairs {
		if p.FamilyID == familyID && p.ID != excludeID && p.RevokedAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepo) ListActiveForUser(_ context.Context, userID string, now time.Time) ([]TokenPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []TokenPair
	for _, p := range r.pairs {
		if p.UserID == userID && p.Active(now) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepo) all() []TokenPair {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]TokenPair, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.pairs[id])
	}
	return out
}

// forceLive clears revokedAt, simulating a store that let two live rows
// into one family.
func (r *memoryRepo) forceLive(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs[id].RevokedAt = nil
}

var _ Repository = (*memoryRepo)(nil)
