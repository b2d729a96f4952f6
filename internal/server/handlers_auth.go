package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bobmcallan/novus/internal/common"
)

const tokenIssuer = "novus-server"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

// signJWT creates an HMAC-signed token for subject.
func signJWT(subject string, config *common.AuthConfig, now time.Time) (string, time.Time, error) {
	exp := now.Add(config.GetTokenExpiry())
	claims := jwt.MapClaims{
		"jti": uuid.New().String(),
		"sub": subject,
		"iss": tokenIssuer,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.JWTSecret))
	return signed, exp, err
}

// validateJWT parses and validates a JWT token string using the given secret.
func validateJWT(tokenString string, secret []byte) (*jwt.Token, jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, nil, err
	}
	return token, claims, nil
}

// parseSession validates tokenString and converts its claims to a Session.
func parseSession(tokenString string, secret []byte) (*common.Session, error) {
	_, claims, err := validateJWT(tokenString, secret)
	if err != nil {
		return nil, err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("token has no subject")
	}
	jti, _ := claims["jti"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("token has no expiry")
	}
	return &common.Session{Subject: sub, TokenID: jti, ExpiresAt: exp.Unix()}, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// configuredHash returns the bcrypt hash to check passwords against. A
// plaintext password from config is hashed once on first use.
func (s *Server) configuredHash() ([]byte, error) {
	auth := s.app.Config.Auth
	if auth.PasswordHash != "" {
		return []byte(auth.PasswordHash), nil
	}
	s.hashOnce.Do(func() {
		s.passwordHash, s.hashErr = bcrypt.GenerateFromPassword([]byte(auth.Password), bcrypt.DefaultCost)
	})
	return s.passwordHash, s.hashErr
}

// handleAuthLogin handles POST /api/auth/login. The owner's credentials are
// static configuration; a match yields a bearer token.
func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	auth := &s.app.Config.Auth
	if missing := s.app.Config.ValidateRequired(); len(missing) > 0 {
		WriteErrorWithCode(w, http.StatusServiceUnavailable, "Login is not configured", "auth_not_configured")
		return
	}

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, "email and password are required", "validation_failed")
		return
	}

	hash, err := s.configuredHash()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash configured password")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Compared before the email check so both rejections cost one bcrypt run.
	pwErr := bcrypt.CompareHashAndPassword(hash, []byte(req.Password))
	if email != normalizeEmail(auth.Email) || pwErr != nil {
		s.logger.Info().Str("email", email).Msg("Login rejected")
		WriteErrorWithCode(w, http.StatusUnauthorized, "Invalid email or password", "invalid_credentials")
		return
	}

	now := time.Now()
	token, exp, err := signJWT(email, auth, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign token")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if s.app.Auth != nil {
		s.app.Auth.MarkLogin(exp)
	}
	s.logger.Info().Str("email", email).Time("expires", exp).Msg("Login accepted")

	WriteJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresIn: int64(exp.Sub(now).Seconds()),
	})
}
