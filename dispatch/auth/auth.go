// Package auth validates HS256 bearer tokens and resolves the calling
// driver's identity for request handlers.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey struct{}

// Korean error messages are part of the API contract with the driver app.
const (
	msgTokenMissing = "토큰이 없습니다"
	msgTokenInvalid = "유효하지 않은 토큰입니다"
	msgTokenExpired = "토큰이 만료되었습니다"

	// MsgForbidden is returned by handlers on ownership or id-range
	// violations.
	MsgForbidden = "권한이 없습니다"
)

// Middleware rejects requests without a valid bearer token and stores the
// token's user id in the request context.
func Middleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, msgTokenMissing)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, msgTokenMissing)
				return
			}

			userID, err := parseUserID(token, secret)
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeError(w, http.StatusUnauthorized, msgTokenExpired)
					return
				}
				writeError(w, http.StatusUnauthorized, msgTokenInvalid)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseUserID(tokenString string, secret []byte) (int, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}

	// Token issuers vary between snake and camel case for the id claim.
	for _, key := range []string{"user_id", "userId"} {
		if v, ok := claims[key]; ok {
			if f, ok := v.(float64); ok {
				return int(f), nil
			}
		}
	}
	return 0, errors.New("token has no user id claim")
}

// DriverID returns the authenticated driver id stored by Middleware.
func DriverID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(contextKey{}).(int)
	return id, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
