package model

import "time"

// User types partition the session store. For administrators the user type
// equals the role column of the users table.
const (
	UserTypeAdmin         = "admin"
	UserTypeAcademicAdmin = "academic_admin"
	UserTypeTeacher       = "teacher"
	UserTypeStudent       = "student"
)

// KnownUserType reports whether t is one of the four session partitions.
// Tokens minted by older deployments can carry anything else; those revoke
// nothing on logout.
func KnownUserType(t string) bool {
	switch t {
	case UserTypeAdmin, UserTypeAcademicAdmin, UserTypeTeacher, UserTypeStudent:
		return true
	default:
		return false
	}
}

// Identity is the record produced by resolving a login identifier against
// one of the identity backends (users, students, professores).
type Identity struct {
	ID           int64
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	UserType     string
	Active       bool
}

type RefreshToken struct {
	ID        string
	UserID    int64
	UserType  string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the token is neither revoked nor expired at now.
func (t RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

type PasswordReset struct {
	ID        string
	Email     string
	Token     string
	UserType  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}
