// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/journal-backend/internal/core"
)

// Repository is the credential store. It holds no policy: every
// time-dependent statement takes now from the caller.
type Repository interface {
	Create(ctx context.Context, pair *TokenPair) error
	FindByAccessDigest(ctx context.Context, digest string) (*TokenPair, error)
	FindByRefreshDigest(ctx context.Context, digest string) (*TokenPair, error)
	// Rotate revokes previousID and inserts next in one transaction. It
	// fails with errRotationConflict unless previousID was still
	// refresh-valid at now.
	Rotate(ctx context.Context, previousID string, next *TokenPair, now time.Time) error
	RevokeByID(ctx context.Context, id string, now time.Time) error
	RevokeByFamilyID(ctx context.Context, familyID string, now time.Time) (int64, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
	RevokeAllButNewest(ctx context.Context, userID string, keep int, now time.Time) (int64, error)
	CountLiveInFamily(ctx context.Context, familyID, excludeID string) (int, error)
	ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]TokenPair, error)
}

const (
	constraintAccessDigest  = "token_pairs_access_digest_key"
	constraintRefreshDigest = "token_pairs_refresh_digest_key"
)

const tokenPairColumns = `
	id, user_id, family_id, previous_id, access_digest, refresh_digest,
	access_expires_at, refresh_expires_at, revoked_at, user_agent, ip_address,
	created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, pair *TokenPair) error {
	if err := insertTokenPair(ctx, r.db, pair); err != nil {
		return fmt.Errorf("create token pair: %w", err)
	}
	return nil
}

func insertTokenPair(ctx context.Context, db core.DBTX, pair *TokenPair) error {
	query := `
		INSERT INTO token_pairs (
			id, user_id, family_id, previous_id, access_digest, refresh_digest,
			access_expires_at, refresh_expires_at, user_agent, ip_address,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11
		)`

	_, err := db.ExecContext(ctx, query,
		pair.ID,
		pair.UserID,
		pair.FamilyID,
		pair.PreviousID,
		pair.AccessDigest,
		pair.RefreshDigest,
		pair.AccessExpiresAt,
		pair.RefreshExpiresAt,
		pair.UserAgent,
		pair.IPAddress,
		pair.CreatedAt,
	)
	if err != nil {
		if core.IsUniqueViolation(err, constraintAccessDigest, constraintRefreshDigest) {
			return fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
		}
		return err
	}

	pair.UpdatedAt = pair.CreatedAt
	return nil
}

func (r *repository) FindByAccessDigest(
	ctx context.Context,
	digest string,
) (*TokenPair, error) {
	return r.findOne(ctx, "find by access digest",
		`SELECT`+tokenPairColumns+` FROM token_pairs WHERE access_digest = $1`, digest)
}

func (r *repository) FindByRefreshDigest(
	ctx context.Context,
	digest string,
) (*TokenPair, error) {
	return r.findOne(ctx, "find by refresh digest",
		`SELECT`+tokenPairColumns+` FROM token_pairs WHERE refresh_digest = $1`, digest)
}

func (r *repository) findOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*TokenPair, error) {
	var pair TokenPair
	err := r.db.GetContext(ctx, &pair, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &pair, nil
}

func (r *repository) Rotate(
	ctx context.Context,
	previousID string,
	next *TokenPair,
	now time.Time,
) error {
	err := core.InTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		query := `
			UPDATE token_pairs
			SET revoked_at = $2, updated_at = $2
			WHERE id = $1
				AND revoked_at IS NULL
				AND (refresh_expires_at IS NULL OR refresh_expires_at > $2)`

		result, err := tx.ExecContext(ctx, query, previousID, now)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return errRotationConflict
		}

		next.PreviousID = &previousID
		return insertTokenPair(ctx, tx, next)
	})
	if err != nil {
		return fmt.Errorf("rotate token pair: %w", err)
	}

	return nil
}

func (r *repository) RevokeByID(
	ctx context.Context,
	id string,
	now time.Time,
) error {
	query := `
		UPDATE token_pairs
		SET revoked_at = $2, updated_at = $2
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("revoke token pair: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke token pair: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("revoke token pair: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RevokeByFamilyID(
	ctx context.Context,
	familyID string,
	now time.Time,
) (int64, error) {
	query := `
		UPDATE token_pairs
		SET revoked_at = $2, updated_at = $2
		WHERE family_id = $1 AND revoked_at IS NULL`

	return r.execCount(ctx, "revoke token family", query, familyID, now)
}

func (r *repository) RevokeAllForUser(
	ctx context.Context,
	userID string,
	now time.Time,
) (int64, error) {
	query := `
		UPDATE token_pairs
		SET revoked_at = $2, updated_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL`

	return r.execCount(ctx, "revoke all user tokens", query, userID, now)
}

func (r *repository) RevokeAllButNewest(
	ctx context.Context,
	userID string,
	keep int,
	now time.Time,
) (int64, error) {
	query := `
		UPDATE token_pairs
		SET revoked_at = $3, updated_at = $3
		WHERE id IN (
			SELECT id FROM token_pairs
			WHERE user_id = $1 AND revoked_at IS NULL
			ORDER BY created_at DESC, id DESC
			OFFSET $2
		)`

	return r.execCount(ctx, "revoke old token pairs", query, userID, keep, now)
}

func (r *repository) execCount(
	ctx context.Context,
	op, query string,
	args ...any,
) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return rows, nil
}

func (r *repository) CountLiveInFamily(
	ctx context.Context,
	familyID, excludeID string,
) (int, error) {
	query := `
		SELECT COUNT(*) FROM token_pairs
		WHERE family_id = $1 AND revoked_at IS NULL AND id <> $2`

	var count int
	if err := r.db.GetContext(ctx, &count, query, familyID, excludeID); err != nil {
		return 0, fmt.Errorf("count live family members: %w", err)
	}

	return count, nil
}

func (r *repository) ListActiveForUser(
	ctx context.Context,
	userID string,
	now time.Time,
) ([]TokenPair, error) {
	query := `SELECT` + tokenPairColumns + `
		FROM token_pairs
		WHERE user_id = $1
			AND revoked_at IS NULL
			AND (
				(access_digest IS NOT NULL AND (access_expires_at IS NULL OR access_expires_at > $2))
				OR (refresh_digest IS NOT NULL AND (refresh_expires_at IS NULL OR refresh_expires_at > $2))
			)
		ORDER BY created_at DESC`

	var pairs []TokenPair
	if err := r.db.SelectContext(ctx, &pairs, query, userID, now); err != nil {
		return nil, fmt.Errorf("list active token pairs: %w", err)
	}

	return pairs, nil
}
