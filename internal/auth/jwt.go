package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/edmilsonConstantino/BACK-ISAC/internal/model"
)

// ErrNotRefreshToken is returned when a syntactically valid token is missing
// the refresh type marker, so access tokens cannot be replayed against the
// refresh endpoint (and vice versa).
var ErrNotRefreshToken = errors.New("token is not a refresh token")

const refreshTokenType = "refresh"

// TokenData is the payload carried under the "data" claim. The shape is the
// wire contract consumed by downstream authorization middleware.
type TokenData struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	UserType string `json:"user_type"`
	Type     string `json:"type,omitempty"`
}

type Claims struct {
	Data TokenData `json:"data"`
	jwt.RegisteredClaims
}

// Issuer mints and validates the HS256 token pair. Access and refresh tokens
// share the signing secret; refresh tokens are distinguished by
// data.type = "refresh".
type Issuer struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(secret, issuer, audience string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) NewAccessToken(identity model.Identity) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Data: TokenData{
			UserID:   identity.ID,
			Email:    identity.Email,
			Role:     identity.Role,
			UserType: identity.UserType,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// NewRefreshToken mints a refresh token tied to its session row. tokenID is
// the row's id and becomes the jti claim, so two tokens minted in the same
// second for the same identity still sign to distinct strings and distinct
// stored hashes.
func (i *Issuer) NewRefreshToken(userID int64, userType, tokenID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Data: TokenData{
			UserID:   userID,
			UserType: userType,
			Type:     refreshTokenType,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse checks signature, expiry and not-before. Issuer and audience are
// carried in the claims but not enforced, matching the deployed clients.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// ParseRefresh validates the token and requires the refresh type marker.
func (i *Issuer) ParseRefresh(tokenString string) (*Claims, error) {
	claims, err := i.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Data.Type != refreshTokenType {
		return nil, ErrNotRefreshToken
	}
	return claims, nil
}

// IsRefresh reports whether already-parsed claims belong to a refresh token.
func (c *Claims) IsRefresh() bool {
	return c.Data.Type == refreshTokenType
}
