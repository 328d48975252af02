package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	bearerScheme = "Bearer"

	// QueryParam carries the token for clients that cannot set headers,
	// such as browser EventSource.
	QueryParam = "access_token"
)

type contextKey struct{}

var tokenDataContextKey = contextKey{}

var ErrNoToken = errors.New("no bearer token")

type Claims[T any] struct {
	jwt.RegisteredClaims
	TokenInfo T `json:"info"`
}

// GenerateToken signs input with HS256. The result has no scheme prefix.
func GenerateToken[T any](input T, exp time.Duration, secret string) (string, error) {
	now := time.Now()
	tokenData := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims[T]{
		TokenInfo: input,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	return tokenData.SignedString([]byte(secret))
}

func VerifyToken[T any](token, secret string) (*T, error) {
	claims := &Claims[T]{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return &claims.TokenInfo, nil
}

// TokenFromRequest prefers the Authorization header over the query parameter.
func TokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != bearerScheme || token == "" {
			return "", jwt.ErrInvalidType
		}
		return token, nil
	}

	if token := r.URL.Query().Get(QueryParam); token != "" {
		return token, nil
	}

	return "", ErrNoToken
}

func AuthBearerMiddlewareInit[T any](secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			tokenInfo, err := VerifyToken[T](token, secret)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTokenInfo(r.Context(), tokenInfo)))
		})
	}
}

func WithTokenInfo[T any](ctx context.Context, info *T) context.Context {
	return context.WithValue(ctx, tokenDataContextKey, info)
}

func GetTokenInfo[T any](r *http.Request) *T {
	tokenInfo, ok := r.Context().Value(tokenDataContextKey).(*T)
	if !ok {
		return nil
	}

	return tokenInfo
}
