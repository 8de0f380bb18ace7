package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/edmilsonConstantino/BACK-ISAC/internal/model"
)

func testIssuer(accessTTL time.Duration) *Issuer {
	return NewIssuer("test-secret", "http://localhost", "http://localhost", accessTTL, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := testIssuer(time.Hour)
	identity := model.Identity{
		ID:       42,
		Email:    "aluno@example.com",
		Role:     "student",
		UserType: model.UserTypeStudent,
	}

	token, err := issuer.NewAccessToken(identity)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.Data.UserID != 42 || claims.Data.Role != "student" || claims.Data.UserType != "student" {
		t.Fatalf("unexpected claims: %+v", claims.Data)
	}
	if claims.Data.Email != "aluno@example.com" {
		t.Fatalf("unexpected email claim: %s", claims.Data.Email)
	}
	if claims.IsRefresh() {
		t.Fatal("access token must not carry the refresh marker")
	}
}

func TestRefreshTokenTypeMarker(t *testing.T) {
	issuer := testIssuer(time.Hour)

	refresh, err := issuer.NewRefreshToken(7, model.UserTypeTeacher, "session-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	claims, err := issuer.ParseRefresh(refresh)
	if err != nil {
		t.Fatalf("parse refresh error: %v", err)
	}
	if claims.Data.UserID != 7 || claims.Data.UserType != "teacher" {
		t.Fatalf("unexpected claims: %+v", claims.Data)
	}
	if claims.ID != "session-1" {
		t.Fatalf("expected jti to carry the session id, got %q", claims.ID)
	}

	// An access token presented as a refresh token must be rejected.
	access, err := issuer.NewAccessToken(model.Identity{ID: 7, UserType: model.UserTypeTeacher})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := issuer.ParseRefresh(access); !errors.Is(err, ErrNotRefreshToken) {
		t.Fatalf("expected ErrNotRefreshToken, got %v", err)
	}
}

func TestRefreshTokensDistinctWithinSameSecond(t *testing.T) {
	issuer := testIssuer(time.Hour)

	// iat/exp have second precision, so back-to-back mints for the same
	// identity must be kept apart by the jti claim alone.
	first, err := issuer.NewRefreshToken(10, model.UserTypeStudent, "session-a")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	second, err := issuer.NewRefreshToken(10, model.UserTypeStudent, "session-b")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if first == second {
		t.Fatal("tokens minted in the same second must not be identical")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	issuer := testIssuer(-time.Minute)
	token, err := issuer.NewAccessToken(model.Identity{ID: 1, UserType: model.UserTypeAdmin})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := issuer.Parse(token); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := testIssuer(time.Hour).NewAccessToken(model.Identity{ID: 1, UserType: model.UserTypeAdmin})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	other := NewIssuer("another-secret", "http://localhost", "http://localhost", time.Hour, time.Hour)
	if _, err := other.Parse(token); err == nil {
		t.Fatal("expected signature failure")
	}
}

func TestParseRejectsUnsignedToken(t *testing.T) {
	issuer := testIssuer(time.Hour)
	token, err := issuer.NewAccessToken(model.Identity{ID: 1, UserType: model.UserTypeAdmin})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	// Strip the signature to simulate alg tampering.
	parts := strings.Split(token, ".")
	forged := parts[0] + "." + parts[1] + "."
	if _, err := issuer.Parse(forged); err == nil {
		t.Fatal("expected rejection of unsigned token")
	}
}
