package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/edmilsonConstantino/BACK-ISAC/internal/auth"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/config"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/crypto"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/model"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/repository"
)

const minLoginSecretLen = 5

var (
	hasLetter = regexp.MustCompile(`[A-Za-z]`)
	hasDigit  = regexp.MustCompile(`[0-9]`)
)

// Service orchestrates the session lifecycle: login, refresh rotation,
// logout and password recovery. It owns no state beyond its collaborators;
// every call is an independent request.
type Service struct {
	cfg    config.Config
	store  repository.Storage
	tokens *auth.Issuer
	log    *slog.Logger
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	Identity     model.Identity
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
}

// ResetIssue carries a freshly minted password-reset token. It is only ever
// shown to the caller in development mode.
type ResetIssue struct {
	Token     string
	ExpiresAt time.Time
}

func New(cfg config.Config, store repository.Storage, tokens *auth.Issuer, log *slog.Logger) *Service {
	return &Service{cfg: cfg, store: store, tokens: tokens, log: log}
}

// Login resolves the identifier against the identity backends, verifies the
// secret and issues a fresh token pair. Unknown identifiers and wrong
// passwords produce the same failure; only a deactivated administrator
// account is reported distinctly.
func (s *Service) Login(ctx context.Context, identifier, secret string) (TokenPair, error) {
	if len(secret) < minLoginSecretLen {
		return TokenPair{}, ErrSecretTooShort
	}

	identity, err := s.store.ResolveIdentity(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			loginAttempts.WithLabelValues("invalid").Inc()
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if !identity.Active {
		loginAttempts.WithLabelValues("deactivated").Inc()
		return TokenPair{}, ErrAccountDeactivated
	}

	// Resolution stops at the first matching backend: a failed password
	// check here does not fall through to the remaining backends.
	if err := crypto.CheckPassword(identity.PasswordHash, secret); err != nil {
		loginAttempts.WithLabelValues("invalid").Inc()
		return TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.issueTokens(ctx, s.store, identity)
	if err != nil {
		return TokenPair{}, err
	}

	if trimmed, err := s.store.EnforceSessionCap(ctx, identity.ID, identity.UserType, s.cfg.MaxSessions); err != nil {
		s.log.Warn("session cap enforcement failed", "user_id", identity.ID, "user_type", identity.UserType, "err", err)
	} else if trimmed > 0 {
		sessionsRevoked.Add(float64(trimmed))
		s.log.Info("revoked sessions over cap", "user_id", identity.ID, "user_type", identity.UserType, "revoked", trimmed)
	}

	// Best effort: a login must not fail because the timestamp write did.
	if err := s.store.TouchLastLogin(ctx, identity.UserType, identity.ID); err != nil {
		s.log.Warn("last_login update failed", "user_id", identity.ID, "user_type", identity.UserType, "err", err)
	}

	loginAttempts.WithLabelValues("success").Inc()
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is atomically
// consumed and a new pair is issued in the same transaction. A token that is
// unknown, already rotated, revoked or expired fails hard; so does a token
// whose claims disagree with the stored session or whose identity is no
// longer active.
func (s *Service) Refresh(ctx context.Context, rawToken string) (TokenPair, error) {
	claims, err := s.tokens.ParseRefresh(rawToken)
	if err != nil {
		return TokenPair{}, ErrTokenInvalid
	}

	tokenHash := crypto.HashToken(rawToken)

	var pair TokenPair
	err = s.store.WithTx(ctx, func(tx repository.Storage) error {
		row, err := tx.ConsumeRefreshToken(ctx, tokenHash)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrTokenRevoked
			}
			return err
		}

		// Cross-check the JWT payload against the stored session. A mismatch
		// aborts the transaction, so the row is not consumed by a token that
		// was never entitled to it.
		if claims.Data.UserID != row.UserID {
			return ErrTokenInvalid
		}
		if claims.Data.UserType != "" && claims.Data.UserType != row.UserType {
			return ErrTokenInvalid
		}

		// Identity data is re-fetched fresh, never trusted from the old JWT.
		identity, err := tx.GetIdentity(ctx, row.UserType, row.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrIdentityInactive
			}
			return err
		}

		pair, err = s.issueTokens(ctx, tx, identity)
		return err
	})
	if err != nil {
		return TokenPair{}, err
	}

	refreshRotations.Inc()
	return pair, nil
}

// Logout revokes every live session for the identity named by the access
// token. It is idempotent and deliberately forgiving: an invalid or expired
// token still logs out successfully, and a token whose user type cannot be
// mapped revokes nothing.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil
	}

	userType := claims.Data.UserType
	if userType == "" {
		userType = claims.Data.Role
	}
	if !model.KnownUserType(userType) {
		s.log.Warn("logout token without usable user type", "user_id", claims.Data.UserID, "user_type", userType)
		return nil
	}

	revoked, err := s.store.RevokeAllRefreshTokens(ctx, claims.Data.UserID, userType)
	if err != nil {
		return err
	}
	sessionsRevoked.Add(float64(revoked))
	return nil
}

// ForgotPassword issues a password-reset token when the email belongs to an
// active identity. The (nil, nil) return means "no such account"; callers
// must respond with the same generic success either way.
func (s *Service) ForgotPassword(ctx context.Context, email string) (*ResetIssue, error) {
	identity, err := s.store.FindIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	token, err := crypto.NewResetToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reset := model.PasswordReset{
		ID:        uuid.NewString(),
		Email:     identity.Email,
		Token:     token,
		UserType:  identity.UserType,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.ResetTokenTTL),
	}

	err = s.store.WithTx(ctx, func(tx repository.Storage) error {
		if err := tx.InvalidatePasswordResets(ctx, identity.Email); err != nil {
			return err
		}
		return tx.CreatePasswordReset(ctx, reset)
	})
	if err != nil {
		return nil, err
	}

	return &ResetIssue{Token: token, ExpiresAt: reset.ExpiresAt}, nil
}

// ResetPassword consumes a reset token and installs the new password. The
// hash update, the token burn and the revocation of every live session run
// in one transaction: a half-applied reset cannot leave stale sessions
// alive against a changed password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) error {
	if len(newPassword) < 8 || !hasLetter.MatchString(newPassword) || !hasDigit.MatchString(newPassword) {
		return ErrWeakPassword
	}
	if confirmPassword != "" && confirmPassword != newPassword {
		return ErrPasswordMismatch
	}

	reset, err := s.store.GetPasswordResetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}

	if reset.ExpiresAt.Before(time.Now().UTC()) {
		// Burn the token so a second attempt cannot reuse it either.
		if err := s.store.MarkPasswordResetUsed(ctx, reset.ID); err != nil {
			s.log.Warn("failed to burn expired reset token", "reset_id", reset.ID, "err", err)
		}
		return ErrResetTokenExpired
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx repository.Storage) error {
		if err := tx.UpdatePassword(ctx, reset.UserType, reset.Email, hash); err != nil {
			// A vanished account or an unmappable stored type both mean the
			// reset can no longer be honored.
			if errors.Is(err, repository.ErrUnknownUserType) || errors.Is(err, repository.ErrNotFound) {
				return ErrResetTokenInvalid
			}
			return err
		}
		if err := tx.MarkPasswordResetUsed(ctx, reset.ID); err != nil {
			return err
		}

		identity, err := tx.GetIdentityByEmail(ctx, reset.UserType, reset.Email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return err
		}

		revoked, err := tx.RevokeAllRefreshTokens(ctx, identity.ID, reset.UserType)
		if err != nil {
			return err
		}
		sessionsRevoked.Add(float64(revoked))
		return nil
	})
}

// issueTokens mints the access/refresh pair and persists the refresh token's
// hash through the given storage, which may be transaction-bound.
func (s *Service) issueTokens(ctx context.Context, store repository.Storage, identity model.Identity) (TokenPair, error) {
	accessToken, err := s.tokens.NewAccessToken(identity)
	if err != nil {
		return TokenPair{}, err
	}

	// The row id doubles as the jti claim, making every minted token unique
	// even within the same second.
	tokenID := uuid.NewString()
	refreshToken, err := s.tokens.NewRefreshToken(identity.ID, identity.UserType, tokenID)
	if err != nil {
		return TokenPair{}, err
	}

	now := time.Now().UTC()
	row := model.RefreshToken{
		ID:        tokenID,
		UserID:    identity.ID,
		UserType:  identity.UserType,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.RefreshTTL()),
	}
	if err := store.CreateRefreshToken(ctx, row); err != nil {
		return TokenPair{}, err
	}

	identity.PasswordHash = ""
	return TokenPair{
		Identity:     identity,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
	}, nil
}
