package store

import (
	"context"
	"database/sql"
	"time"
)

// RevokeToken records a token ID as revoked until it would have expired,
// and drops revocations that have outlived their token.
func RevokeToken(ctx context.Context, database *sql.DB, jti string, expiresAt time.Time) error {
	_, err := database.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt.UTC(),
	)
	if err != nil {
		return wrap("revoking token", err)
	}

	_, err = PurgeExpiredTokens(ctx, database)
	return err
}

// PurgeExpiredTokens deletes revocations whose tokens have expired.
func PurgeExpiredTokens(ctx context.Context, database *sql.DB) (int64, error) {
	result, err := database.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, nowFunc(),
	)
	if err != nil {
		return 0, wrap("purging revoked tokens", err)
	}
	return result.RowsAffected()
}

// IsTokenRevoked reports whether jti has been revoked.
func IsTokenRevoked(ctx context.Context, database *sql.DB, jti string) (bool, error) {
	var count int
	err := database.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&count)
	if err != nil {
		return false, wrap("checking token revocation", err)
	}
	return count > 0, nil
}
