// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// TokenPair is one issuance or rotation event. Rotation appends a new row
// with the same FamilyID and PreviousID pointing at the row it replaced.
type TokenPair struct {
	ID               string     `db:"id"`
	UserID           string     `db:"user_id"`
	FamilyID         string     `db:"family_id"`
	PreviousID       *string    `db:"previous_id"`
	AccessDigest     *string    `db:"access_digest"`
	RefreshDigest    *string    `db:"refresh_digest"`
	AccessExpiresAt  *time.Time `db:"access_expires_at"`
	RefreshExpiresAt *time.Time `db:"refresh_expires_at"`
	RevokedAt        *time.Time `db:"revoked_at"`
	UserAgent        string     `db:"user_agent"`
	IPAddress        string     `db:"ip_address"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (t *TokenPair) IsRevoked() bool {
	return t.RevokedAt != nil
}

// AccessValid treats a missing expiry as non-expiring, matching rows
// created before expiries were tracked.
func (t *TokenPair) AccessValid(now time.Time) bool {
	return !t.IsRevoked() && t.AccessDigest != nil &&
		(t.AccessExpiresAt == nil || t.AccessExpiresAt.After(now))
}

func (t *TokenPair) RefreshValid(now time.Time) bool {
	return !t.IsRevoked() && t.RefreshDigest != nil &&
		(t.RefreshExpiresAt == nil || t.RefreshExpiresAt.After(now))
}

func (t *TokenPair) Active(now time.Time) bool {
	return t.AccessValid(now) || t.RefreshValid(now)
}

func (t *TokenPair) hasDigest() bool {
	return t.AccessDigest != nil || t.RefreshDigest != nil
}

// Pair holds the raw secrets of one issuance. It is the only place they
// exist outside the client.
type Pair struct {
	AccessSecret     string
	RefreshSecret    string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	FamilyID         string
}

// ClientInfo is request metadata recorded alongside a token pair.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}
