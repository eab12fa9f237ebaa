// Package auth issues and checks the tokens that bind a websocket client
// to its calculator session.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWTSecret = "fallback_secret_change_in_production"
	tokenIssuer      = "retrocalc"

	// SecretEnvVar overrides [Auth] secret_key
	SecretEnvVar = "CALC_JWT_SECRET"
	// TokenCookie is the cookie the token is stored in after login
	TokenCookie = "calc_token"
	// GuestSubject is the subject of tokens issued without a login
	GuestSubject = "guest"
)

// ErrNoToken is returned when a request carries no token at all
var ErrNoToken = errors.New("no token found in request")

// getJWTSecret reads the secret from the environment, then the configuration
func getJWTSecret() string {
	if envSecret := os.Getenv(SecretEnvVar); envSecret != "" {
		return envSecret
	}

	secret := configuration.GetString("Auth", "secret_key", "")
	if secret == "" {
		logger.AuthWarn("Using fallback JWT secret - set %s for production", SecretEnvVar)
		return defaultJWTSecret
	}
	return secret
}

func getTokenExpiration() time.Duration {
	hours := configuration.GetInt("Auth", "token_expiration_hours", 24)
	return time.Duration(hours) * time.Hour
}

// Claims binds a token to a calculator session
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// IsGuest reports whether the token was issued without a login
func (c *Claims) IsGuest() bool {
	return c.Subject == GuestSubject
}

// GenerateToken signs a token for sessionID. subject is a user name or GuestSubject.
func GenerateToken(sessionID, subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(getTokenExpiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   subject,
			ID:        sessionID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(getJWTSecret()))
	if err != nil {
		return "", fmt.Errorf("token could not be signed: %w", err)
	}
	logger.AuthInfo("Token generated for session %s (subject %s)", sessionID, subject)
	return signedToken, nil
}

// ValidateToken parses tokenString and checks signature, algorithm and expiry
func ValidateToken(tokenString string) (*Claims, error) {
	secretKey := getJWTSecret()

	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing algorithm: %v", token.Header["alg"])
			}
			return []byte(secretKey), nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("could not extract token claims")
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("token carries no session id")
	}
	return claims, nil
}

// ExtractTokenFromRequest looks in the Authorization header, the token cookie
// and the "token" query parameter, in that order
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1], nil
		}
		return "", fmt.Errorf("invalid authorization header format")
	}

	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	// Browsers cannot set headers on a websocket handshake
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	return "", ErrNoToken
}

// RequireToken rejects requests without a valid token and stores the claims
// in the request context
func RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next(w, r)
			return
		}

		tokenString, err := ExtractTokenFromRequest(r)
		if err != nil {
			logger.AuthWarn("No token in request from %s: %v", getClientIP(r), err)
			http.Error(w, "Unauthorized: token missing", http.StatusUnauthorized)
			return
		}

		claims, err := ValidateToken(tokenString)
		if err != nil {
			logger.AuthWarn("Invalid token from %s: %v", getClientIP(r), err)
			http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
			return
		}

		next(w, r.WithContext(AddClaimsToContext(r.Context(), claims)))
	}
}
