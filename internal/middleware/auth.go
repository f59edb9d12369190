package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Kamalbura/lms-sub001/internal/models"
)

type contextKey string

const (
	UserIDKey      contextKey = "user_id"
	RoleKey        contextKey = "role"
	DisplayNameKey contextKey = "display_name"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrTokenExpired = errors.New("token has expired")
	ErrInvalidToken = errors.New("invalid token")
)

type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// GenerateAccessToken signs a token carrying the identity claims this service
// reads. Tokens are normally issued by the identity provider; this is used by
// tests and local tooling.
func (j *JWTAuth) GenerateAccessToken(id models.Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": id.UserID.String(),
		"role":    id.Role,
		"name":    id.DisplayName,
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// Authenticate verifies a bearer token and returns the identity it carries.
func (j *JWTAuth) Authenticate(tokenStr string) (models.Identity, error) {
	if tokenStr == "" {
		return models.Identity{}, ErrMissingToken
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, ErrTokenExpired
		}
		return models.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	userIDStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return models.Identity{}, ErrInvalidToken
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleStudent
	}
	name, _ := claims["name"].(string)

	return models.Identity{UserID: userID, Role: role, DisplayName: name}, nil
}

// Middleware validates JWT and attaches the caller's identity to context
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing authorization header", r)
			return
		}

		// Must be Bearer format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid authorization format", r)
			return
		}

		identity, err := j.Authenticate(parts[1])
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid token", r)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id.UserID)
	ctx = context.WithValue(ctx, RoleKey, id.Role)
	return context.WithValue(ctx, DisplayNameKey, id.DisplayName)
}

// GetUserID extracts user_id from request context
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func GetIdentity(ctx context.Context) models.Identity {
	role, _ := ctx.Value(RoleKey).(string)
	name, _ := ctx.Value(DisplayNameKey).(string)
	return models.Identity{UserID: GetUserID(ctx), Role: role, DisplayName: name}
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: GetRequestID(r.Context()),
		},
	})
}
