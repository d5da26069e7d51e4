package webserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

// Middleware handles authentication for incoming HTTP requests.
type Middleware struct {
	Config *WebserverConfig
	Logger *logrus.Logger
}

// NewMiddleware initializes a new authentication middleware.
func NewMiddleware(config *WebserverConfig, logger *logrus.Logger) *Middleware {
	return &Middleware{
		Config: config,
		Logger: logger,
	}
}

// AuthMiddleware is the HTTP middleware for authentication.
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearerToken(r)
		if tokenString == "" {
			m.Logger.Warn("Authorization token not found")
			WriteErrorResponse(w, "Authorization token not found", http.StatusUnauthorized)
			return
		}

		claims, err := m.parseAndValidateToken(tokenString)
		if err != nil {
			m.Logger.WithError(err).Warn("Invalid token")
			WriteErrorResponse(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		// Attach claims to the request context
		ctx := context.WithValue(r.Context(), "user", claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// parseAndValidateToken parses and validates a JWT token string.
func (m *Middleware) parseAndValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Ensure token is signed with HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.Config.JwtSecret, nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	// Validate expiration
	if exp, ok := claims["exp"].(float64); !ok || float64(time.Now().Unix()) > exp {
		return nil, fmt.Errorf("token has expired")
	}

	return claims, nil
}

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
		return parts[1]
	}
	return ""
}
