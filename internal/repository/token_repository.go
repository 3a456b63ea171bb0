package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/pizza-service/internal/utils"
)

// TokenRepo is the MySQL session liveness store.  Each live session is a
// row in auth_tokens keyed by the SHA-256 of the raw token; revoking
// deletes the row.
type TokenRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db, now: time.Now} }

// Put records token as live for userID until expiresAt.
func (r *TokenRepo) Put(ctx context.Context, token string, userID uint64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO auth_tokens (token_hash, user_id, expires_at) VALUES (?,?,?) ON DUPLICATE KEY UPDATE expires_at=VALUES(expires_at)",
		utils.HashToken(token), userID, expiresAt.UTC())
	return err
}

// Exists reports whether a non-expired row exists for token.
func (r *TokenRepo) Exists(ctx context.Context, token string) (bool, error) {
	var expiresAt time.Time
	err := r.db.QueryRowContext(ctx,
		"SELECT expires_at FROM auth_tokens WHERE token_hash=? LIMIT 1",
		utils.HashToken(token)).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.now().UTC().Before(expiresAt), nil
}

// Remove deletes the row for token.  Missing rows are not an error.
func (r *TokenRepo) Remove(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM auth_tokens WHERE token_hash=?", utils.HashToken(token))
	return err
}

// RemoveUser deletes every session row of userID.
func (r *TokenRepo) RemoveUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM auth_tokens WHERE user_id=?", userID)
	return err
}

// PurgeExpired deletes rows whose expiry has passed and returns how many
// were removed.
func (r *TokenRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM auth_tokens WHERE expires_at <= ?", r.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
