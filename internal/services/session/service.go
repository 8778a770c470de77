// Package session issues and validates the bearer tokens that guard the API.
// A client exchanges the configured API key for a short-lived HS256 JWT.
package session

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Service struct {
	secret []byte
	apiKey string
	ttl    time.Duration
}

// Claims carried by issued tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// ValidationResult reports the outcome of token validation.
type ValidationResult struct {
	Valid     bool
	Subject   string
	ExpiresAt time.Time
}

func NewService(secret, apiKey string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{secret: []byte(secret), apiKey: apiKey, ttl: ttl}, nil
}

// Exchange trades a valid API key for a signed bearer token.
func (s *Service) Exchange(apiKey string) (token string, expiresAt time.Time, err error) {
	if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.apiKey)) != 1 {
		return "", time.Time{}, fmt.Errorf("invalid api key")
	}

	now := time.Now()
	expiresAt = now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   "api",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate parses and verifies a bearer token.
func (s *Service) Validate(tokenString string) ValidationResult {
	result := ValidationResult{}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		log.Debug().Err(err).Msg("Token validation failed")
		return result
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return result
	}

	result.Valid = true
	result.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result
}

// ExtractToken pulls the bearer token from an Authorization header.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
