package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edmilsonConstantino/BACK-ISAC/internal/model"
)

// ErrNotFound is returned when a lookup matches no row. Callers translate it
// into the appropriate credential or token failure.
var ErrNotFound = errors.New("not found")

// ErrUnknownUserType is returned when a user type does not map to any
// identity table.
var ErrUnknownUserType = errors.New("unknown user type")

// Storage is the persistence contract consumed by the lifecycle service.
// WithTx runs fn against a transaction-bound Storage; multi-step mutations
// (refresh rotation, password reset) go through it so partial failures leave
// no orphaned state.
type Storage interface {
	WithTx(ctx context.Context, fn func(Storage) error) error

	ResolveIdentity(ctx context.Context, identifier string) (model.Identity, error)
	FindIdentityByEmail(ctx context.Context, email string) (model.Identity, error)
	GetIdentity(ctx context.Context, userType string, id int64) (model.Identity, error)
	GetIdentityByEmail(ctx context.Context, userType, email string) (model.Identity, error)
	TouchLastLogin(ctx context.Context, userType string, id int64) error
	UpdatePassword(ctx context.Context, userType, email, passwordHash string) error

	CreateRefreshToken(ctx context.Context, token model.RefreshToken) error
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	RevokeAllRefreshTokens(ctx context.Context, userID int64, userType string) (int64, error)
	EnforceSessionCap(ctx context.Context, userID int64, userType string, max int) (int64, error)

	InvalidatePasswordResets(ctx context.Context, email string) error
	CreatePasswordReset(ctx context.Context, reset model.PasswordReset) error
	GetPasswordResetByToken(ctx context.Context, token string) (model.PasswordReset, error)
	MarkPasswordResetUsed(ctx context.Context, id string) error
}

// DB is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx, so the
// same Store methods run inside and outside transactions.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store struct {
	db DB
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(Storage) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Store{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// identityTable maps a user type to its backing table and password column.
// The legacy schema stores admin passwords under "senha".
func identityTable(userType string) (table, passwordColumn string, err error) {
	switch userType {
	case model.UserTypeAdmin, model.UserTypeAcademicAdmin:
		return "users", "senha", nil
	case model.UserTypeStudent:
		return "students", "password", nil
	case model.UserTypeTeacher:
		return "professores", "password", nil
	default:
		return "", "", ErrUnknownUserType
	}
}
