package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// APIKeyMiddleware authenticates requests against a static token table
// (token -> user ID). The token comes from the Authorization header or,
// for websocket handshakes where custom headers are awkward, from the
// token query parameter.
func APIKeyMiddleware(tokens map[string]int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
			if token == "" {
				token = r.URL.Query().Get("token")
			}

			userID, ok := tokens[token]
			if token == "" || !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}
