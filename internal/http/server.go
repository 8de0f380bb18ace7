package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edmilsonConstantino/BACK-ISAC/internal/auth"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/config"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/model"
	"github.com/edmilsonConstantino/BACK-ISAC/internal/service"
)

type Server struct {
	cfg    config.Config
	svc    *service.Service
	tokens *auth.Issuer
	log    *slog.Logger
}

func NewServer(cfg config.Config, svc *service.Service, tokens *auth.Issuer, log *slog.Logger) *Server {
	return &Server{cfg: cfg, svc: svc, tokens: tokens, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/auth/logout", s.handleLogout)
	r.Post("/auth/forgot-password", s.handleForgotPassword)
	r.Post("/auth/reset-password", s.handleResetPassword)

	r.With(s.AuthMiddleware).Get("/auth/me", s.handleMe)

	return r
}

// loginRequest accepts every credential key the deployed clients send:
// "identifier" is canonical, the rest are legacy aliases still in use by the
// web and mobile frontends.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Enrollment string `json:"enrollment_number"`
	Codigo     string `json:"codigo"`
	Password   string `json:"password"`
	Senha      string `json:"senha"`
}

func (r loginRequest) identifier() string {
	for _, candidate := range []string{r.Identifier, r.Email, r.Username, r.Enrollment, r.Codigo} {
		if trimmed := strings.TrimSpace(candidate); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func (r loginRequest) secret() string {
	if r.Senha != "" {
		return r.Senha
	}
	return r.Password
}

type userSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	UserType string `json:"userType"`
}

type authResponse struct {
	User         userSummary `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	TokenType    string      `json:"tokenType"`
	ExpiresIn    int         `json:"expiresIn"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	identifier := req.identifier()
	secret := req.secret()
	if identifier == "" || secret == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	pair, err := s.svc.Login(r.Context(), identifier, secret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSecretTooShort):
			writeError(w, http.StatusBadRequest, "password_too_short")
		case errors.Is(err, service.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
		case errors.Is(err, service.ErrAccountDeactivated):
			writeError(w, http.StatusForbidden, "account_deactivated")
		default:
			s.log.Error("login failed", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, mapAuthResponse(pair))
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	pair, err := s.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenInvalid):
			writeError(w, http.StatusUnauthorized, "invalid_token")
		case errors.Is(err, service.ErrTokenRevoked):
			writeError(w, http.StatusUnauthorized, "token_revoked")
		case errors.Is(err, service.ErrIdentityInactive):
			writeError(w, http.StatusUnauthorized, "identity_inactive")
		default:
			s.log.Error("refresh failed", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, mapAuthResponse(pair))
}

// handleLogout never rejects the caller over the token itself: a missing,
// garbled or expired token still yields a successful logout. Only a storage
// failure is an error.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r.Header.Get("Authorization"))

	if err := s.svc.Logout(r.Context(), token); err != nil {
		s.log.Error("logout failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

const forgotPasswordMessage = "If the email exists, a reset link has been sent."

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		writeError(w, http.StatusBadRequest, "missing_email")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}

	issue, err := s.svc.ForgotPassword(r.Context(), email)
	if err != nil {
		s.log.Error("forgot password failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// The response is identical whether or not the account exists. The raw
	// token only ever leaves the server in development.
	resp := map[string]interface{}{"message": forgotPasswordMessage}
	if issue != nil && s.cfg.Development() {
		resp["debug"] = map[string]string{
			"token":     issue.Token,
			"expiresAt": issue.ExpiresAt.UTC().Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Token == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	err := s.svc.ResetPassword(r.Context(), req.Token, req.Password, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "weak_password")
		case errors.Is(err, service.ErrPasswordMismatch):
			writeError(w, http.StatusBadRequest, "password_mismatch")
		case errors.Is(err, service.ErrResetTokenInvalid):
			writeError(w, http.StatusBadRequest, "reset_token_invalid")
		case errors.Is(err, service.ErrResetTokenExpired):
			writeError(w, http.StatusBadRequest, "reset_token_expired")
		default:
			s.log.Error("reset password failed", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	writeJSON(w, http.StatusOK, userSummary{
		ID:       claims.Data.UserID,
		Email:    claims.Data.Email,
		Role:     claims.Data.Role,
		UserType: claims.Data.UserType,
	})
}

// AuthMiddleware validates the bearer token and stores the decoded claims in
// the request context. Refresh tokens are not accepted as access tokens.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := s.tokens.Parse(token)
		if err != nil || claims.IsRefresh() {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUserType gates a route to the given user types. It assumes
// AuthMiddleware already ran.
func RequireUserType(types ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			userType := claims.Data.UserType
			if userType == "" {
				userType = claims.Data.Role
			}
			if !allowed[userType] {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type claimsKey struct{}

// ClaimsFromContext returns the claims stored by AuthMiddleware, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func mapAuthResponse(pair service.TokenPair) authResponse {
	return authResponse{
		User:         mapUserSummary(pair.Identity),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	}
}

func mapUserSummary(identity model.Identity) userSummary {
	return userSummary{
		ID:       identity.ID,
		Name:     identity.DisplayName,
		Email:    identity.Email,
		Role:     identity.Role,
		UserType: identity.UserType,
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
