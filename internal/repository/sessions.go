package repository

import (
	"context"

	"github.com/edmilsonConstantino/BACK-ISAC/internal/model"
)

func (s *Store) CreateRefreshToken(ctx context.Context, token model.RefreshToken) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, user_type, token_hash, created_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, token.ID, token.UserID, token.UserType, token.TokenHash, token.CreatedAt, token.ExpiresAt, token.RevokedAt)
	return err
}

// ConsumeRefreshToken atomically revokes the live row matching the hash and
// returns it. The single conditional update is what makes rotation safe: two
// concurrent calls with the same token get exactly one row between them, so
// a replayed token always comes back ErrNotFound.
func (s *Store) ConsumeRefreshToken(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var token model.RefreshToken
	err := s.db.QueryRow(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE token_hash = $1
		  AND revoked_at IS NULL
		  AND expires_at > now()
		RETURNING id, user_id, user_type, token_hash, created_at, expires_at, revoked_at
	`, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.UserType,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.RevokedAt,
	)
	if err != nil {
		return model.RefreshToken{}, mapNoRows(err)
	}
	return token, nil
}

// RevokeAllRefreshTokens revokes every live session for the identity and
// returns how many rows were touched. Rows are never deleted.
func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID int64, userType string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE user_id = $1
		  AND user_type = $2
		  AND revoked_at IS NULL
	`, userID, userType)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// EnforceSessionCap revokes every live session for the identity except the
// max most recently created ones. Idempotent; runs after each login. A
// transient overshoot under concurrent logins is tolerated and cleaned up by
// whichever login lands last.
func (s *Store) EnforceSessionCap(ctx context.Context, userID int64, userType string, max int) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = now()
		WHERE user_id = $1
		  AND user_type = $2
		  AND revoked_at IS NULL
		  AND expires_at > now()
		  AND id NOT IN (
			SELECT id
			FROM refresh_tokens
			WHERE user_id = $1
			  AND user_type = $2
			  AND revoked_at IS NULL
			  AND expires_at > now()
			ORDER BY created_at DESC
			LIMIT $3
		  )
	`, userID, userType, max)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
