package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

type contextKey string

const userIDKey contextKey = "userID"

var blacklist *redis.Client

// ErrNoSigningKey is returned when jwt.secret_key is unset.
var ErrNoSigningKey = errors.New("jwt.secret_key is not configured")

// InitAuthMiddleware enables the logout blacklist check. A nil client
// disables it.
func InitAuthMiddleware(redisClient *redis.Client) {
	blacklist = redisClient
}

func BlacklistKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok && userID > 0
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		token, ok := BearerToken(r)
		if !ok {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		if isBlacklisted(r.Context(), token) {
			http.Error(w, "Token has been revoked", http.StatusUnauthorized)
			return
		}

		userID, err := ValidateToken(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func isBlacklisted(ctx context.Context, token string) bool {
	if blacklist == nil {
		return false
	}
	n, err := blacklist.Exists(ctx, BlacklistKey(token)).Result()
	if err != nil {
		slog.Warn("token blacklist lookup failed", "error", err)
		return false
	}
	return n > 0
}

// GenerateToken signs an HS256 token for userID using the jwt.* settings.
func GenerateToken(userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})
	key, err := signingKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

func ValidateToken(tokenString string) (int64, error) {
	key, err := signingKey()
	if err != nil {
		return 0, err
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, errors.New("invalid token claims")
	}

	// JSON numbers decode as float64.
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, errors.New("token has no user_id")
	}
	return int64(userID), nil
}

// RequireSigningKey reports whether tokens can be issued and checked.
func RequireSigningKey() error {
	_, err := signingKey()
	return err
}

func signingKey() ([]byte, error) {
	key := viper.GetString("jwt.secret_key")
	if strings.TrimSpace(key) == "" {
		return nil, ErrNoSigningKey
	}
	return []byte(key), nil
}
