package repository

import (
	"context"

	"github.com/edmilsonConstantino/BACK-ISAC/internal/model"
)

// InvalidatePasswordResets marks every unused reset for the email as used,
// keeping the at-most-one-live-token-per-email invariant.
func (s *Store) InvalidatePasswordResets(ctx context.Context, email string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE password_resets
		SET used = TRUE
		WHERE email = $1 AND used = FALSE
	`, email)
	return err
}

func (s *Store) CreatePasswordReset(ctx context.Context, reset model.PasswordReset) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO password_resets (id, email, token, user_type, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, reset.ID, reset.Email, reset.Token, reset.UserType, reset.CreatedAt, reset.ExpiresAt, reset.Used)
	return err
}

func (s *Store) GetPasswordResetByToken(ctx context.Context, token string) (model.PasswordReset, error) {
	var reset model.PasswordReset
	err := s.db.QueryRow(ctx, `
		SELECT id, email, token, user_type, created_at, expires_at, used
		FROM password_resets
		WHERE token = $1 AND used = FALSE
		LIMIT 1
	`, token).Scan(
		&reset.ID,
		&reset.Email,
		&reset.Token,
		&reset.UserType,
		&reset.CreatedAt,
		&reset.ExpiresAt,
		&reset.Used,
	)
	if err != nil {
		return model.PasswordReset{}, mapNoRows(err)
	}
	return reset, nil
}

func (s *Store) MarkPasswordResetUsed(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE password_resets
		SET used = TRUE
		WHERE id = $1
	`, id)
	return err
}
