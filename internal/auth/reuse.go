// AngelaMos | 2026
// reuse.go

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/journal-backend/internal/core"
)

// ReuseDetector decides whether a presented record means a refresh secret
// was replayed, and kills the family when it does.
type ReuseDetector struct {
	repo Repository
	now  func() time.Time
}

func NewReuseDetector(repo Repository, now func() time.Time) *ReuseDetector {
	if now == nil {
		now = time.Now
	}
	return &ReuseDetector{repo: repo, now: now}
}

// HandleRevokedPresentation is called when the refresh secret of a revoked
// record is presented. Legitimate clients only hold the newest secret, so
// this always revokes the family. The revocation happens before
// ErrReuseDetected is returned.
func (d *ReuseDetector) HandleRevokedPresentation(
	ctx context.Context,
	record *TokenPair,
) error {
	n, err := d.revokeFamily(ctx, record)
	if err != nil {
		return err
	}

	slog.WarnContext(ctx, "refresh token reuse detected",
		"user_id", record.UserID,
		"family_id", record.FamilyID,
		"revoked", n,
	)

	return ErrReuseDetected
}

// DetectTokenReuse reports whether another live record shares record's
// family. When one does, the family is revoked before returning true.
func (d *ReuseDetector) DetectTokenReuse(
	ctx context.Context,
	record *TokenPair,
) (bool, error) {
	live, err := d.repo.CountLiveInFamily(ctx, record.FamilyID, record.ID)
	if err != nil {
		return false, fmt.Errorf("detect token reuse: %w", err)
	}

	if live == 0 {
		return false, nil
	}

	n, err := d.revokeFamily(ctx, record)
	if err != nil {
		return false, err
	}

	slog.WarnContext(ctx, "concurrent live tokens in family",
		"user_id", record.UserID,
		"family_id", record.FamilyID,
		"live", live,
		"revoked", n,
	)

	return true, nil
}

func (d *ReuseDetector) revokeFamily(
	ctx context.Context,
	record *TokenPair,
) (int64, error) {
	ctx, span := core.StartSpan(ctx, "auth.RevokeFamilyOnReuse",
		attribute.String("user.id", record.UserID),
		attribute.String("family.id", record.FamilyID))
	defer span.End()

	n, err := d.repo.RevokeByFamilyID(ctx, record.FamilyID, d.now())
	if err != nil {
		core.SetSpanError(ctx, err)
		return 0, fmt.Errorf("revoke family on reuse: %w", err)
	}

	return n, nil
}
