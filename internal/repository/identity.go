package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edmilsonConstantino/BACK-ISAC/internal/model"
)

// ResolveIdentity probes the identity backends in priority order and returns
// the first matching row: administrators by email, then students by
// enrollment number or email, then teachers by username or email. Resolution
// stops at the first match even if the password later fails to verify;
// identifiers colliding across backends are not disambiguated.
func (s *Store) ResolveIdentity(ctx context.Context, identifier string) (model.Identity, error) {
	lookups := []func(context.Context, string) (model.Identity, error){
		s.lookupAdmin,
		s.lookupStudent,
		s.lookupTeacher,
	}

	for _, lookup := range lookups {
		identity, err := lookup(ctx, identifier)
		if err == nil {
			return identity, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return model.Identity{}, err
		}
	}
	return model.Identity{}, ErrNotFound
}

// FindIdentityByEmail probes the same backends in the same order but keyed
// strictly by email, filtered to active accounts. Used by password recovery.
func (s *Store) FindIdentityByEmail(ctx context.Context, email string) (model.Identity, error) {
	var identity model.Identity

	err := s.db.QueryRow(ctx, `
		SELECT id, nome, email, senha, role
		FROM users
		WHERE email = $1 AND status = 'active'
		LIMIT 1
	`, email).Scan(&identity.ID, &identity.DisplayName, &identity.Email, &identity.PasswordHash, &identity.Role)
	if err == nil {
		identity.UserType = identity.Role
		identity.Active = true
		return identity, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Identity{}, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT id, name, email, password
		FROM students
		WHERE email = $1 AND status = 'ativo'
		LIMIT 1
	`, email).Scan(&identity.ID, &identity.DisplayName, &identity.Email, &identity.PasswordHash)
	if err == nil {
		identity.Role = model.UserTypeStudent
		identity.UserType = model.UserTypeStudent
		identity.Active = true
		return identity, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Identity{}, err
	}

	err = s.db.QueryRow(ctx, `
		SELECT id, nome, email, password
		FROM professores
		WHERE email = $1 AND status = 'ativo'
		LIMIT 1
	`, email).Scan(&identity.ID, &identity.DisplayName, &identity.Email, &identity.PasswordHash)
	if err == nil {
		identity.Role = model.UserTypeTeacher
		identity.UserType = model.UserTypeTeacher
		identity.Active = true
		return identity, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Identity{}, ErrNotFound
	}
	return model.Identity{}, err
}

// GetIdentity re-fetches an identity by its backend id, filtered to active
// accounts. Refresh uses it so rotated tokens never trust stale claims.
func (s *Store) GetIdentity(ctx context.Context, userType string, id int64) (model.Identity, error) {
	var identity model.Identity

	switch userType {
	case model.UserTypeAdmin, model.UserTypeAcademicAdmin:
		err := s.db.QueryRow(ctx, `
			SELECT id, nome, email, senha, role
			FROM users
			WHERE id = $1 AND status = 'active'
			LIMIT 1
		`, id).Scan(&identity.ID, &identity.DisplayName, &identity.Email, &identity.PasswordHash, &identity.Role)
		if err != nil {
			return model.Identity{}, mapNoRows(err)
		}
		identity.UserType = identity.Role
	case model.UserTypeStudent:
		err := s.db.QueryRow(ctx, `
			SELECT id, name, email, password
			FROM students
			WHERE id = $1 AND status = 'ativo'
			LIMIT 1
		`, id).Scan(&identity.ID, &identity.DisplayName, &identity.Email, &identity.PasswordHash)
		if err != nil {
			return model.Identity{}, mapNoRows(err)
		}
		identity.Role = model.UserTypeStudent
		identity.UserType = model.UserTypeStudent
	case model.UserTypeTeacher:
		err := s.db.QueryRow(ctx, `
			SELECT id, nome, email, password
			FROM professores
			WHERE id = $1 AND status = 'ativo'
			LIMIT 1
		`, id).Scan(&identity.ID, &identity.DisplayName, &identity.Email, &identity.PasswordHash)
		if err != nil {
			return model.Identity{}, mapNoRows(err)
		}
		identity.Role = model.UserTypeTeacher
		identity.UserType = model.UserTypeTeacher
	default:
		return model.Identity{}, ErrUnknownUserType
	}

	identity.Active = true
	return identity, nil
}

// GetIdentityByEmail loads the identity backing a password reset. No status
// filter: a deactivated account still gets its sessions revoked.
func (s *Store) GetIdentityByEmail(ctx context.Context, userType, email string) (model.Identity, error) {
	table, _, err := identityTable(userType)
	if err != nil {
		return model.Identity{}, err
	}

	var identity model.Identity
	query := fmt.Sprintf(`SELECT id, email FROM %s WHERE email = $1 LIMIT 1`, table)
	if err := s.db.QueryRow(ctx, query, email).Scan(&identity.ID, &identity.Email); err != nil {
		return model.Identity{}, mapNoRows(err)
	}
	identity.UserType = userType
	return identity, nil
}

// TouchLastLogin stamps last_login on the identity row. Callers treat
// failures as non-fatal.
func (s *Store) TouchLastLogin(ctx context.Context, userType string, id int64) error {
	table, _, err := identityTable(userType)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, fmt.Sprintf(`UPDATE %s SET last_login = now() WHERE id = $1`, table), id)
	return err
}

func (s *Store) UpdatePassword(ctx context.Context, userType, email, passwordHash string) error {
	table, column, err := identityTable(userType)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE email = $2`, table, column)
	tag, err := s.db.Exec(ctx, query, passwordHash, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) lookupAdmin(ctx context.Context, identifier string) (model.Identity, error) {
	var (
		identity model.Identity
		status   string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, nome, email, senha, role, status
		FROM users
		WHERE email = $1
		LIMIT 1
	`, identifier).Scan(&identity.ID, &identity.DisplayName, &identity.Email, &identity.PasswordHash, &identity.Role, &status)
	if err != nil {
		return model.Identity{}, mapNoRows(err)
	}
	identity.UserType = identity.Role
	identity.Active = status != "inactive"
	return identity, nil
}

func (s *Store) lookupStudent(ctx context.Context, identifier string) (model.Identity, error) {
	var identity model.Identity
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, password
		FROM students
		WHERE (enrollment_number = $1 OR email = $1) AND status = 'ativo'
		LIMIT 1
	`, identifier).Scan(&identity.ID, &identity.DisplayName, &identity.Email, &identity.PasswordHash)
	if err != nil {
		return model.Identity{}, mapNoRows(err)
	}
	identity.Role = model.UserTypeStudent
	identity.UserType = model.UserTypeStudent
	identity.Active = true
	return identity, nil
}

func (s *Store) lookupTeacher(ctx context.Context, identifier string) (model.Identity, error) {
	var identity model.Identity
	err := s.db.QueryRow(ctx, `
		SELECT id, nome, email, password
		FROM professores
		WHERE (username = $1 OR email = $1) AND status = 'ativo'
		LIMIT 1
	`, identifier).Scan(&identity.ID, &identity.DisplayName, &identity.Email, &identity.PasswordHash)
	if err != nil {
		return model.Identity{}, mapNoRows(err)
	}
	identity.Role = model.UserTypeTeacher
	identity.UserType = model.UserTypeTeacher
	identity.Active = true
	return identity, nil
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
