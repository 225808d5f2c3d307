package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// Validator is the part of [goSession.Engine] a guard needs.
type Validator interface {
	ValidateAccess(token string) (*goSession.AccessResult, error)
}

type accessContextKey struct{}

// AccessFromContext returns the verified token attached by [Guard].
func AccessFromContext(ctx context.Context) (*goSession.AccessResult, bool) {
	res, ok := ctx.Value(accessContextKey{}).(*goSession.AccessResult)
	return res, ok && res != nil
}

// UserIDFromContext returns the authenticated user id, or "" when the request
// did not pass a guard.
func UserIDFromContext(ctx context.Context) string {
	if res, ok := AccessFromContext(ctx); ok {
		return res.UserID
	}
	return ""
}

// WithAccess attaches res to ctx the way [Guard] does.
func WithAccess(ctx context.Context, res *goSession.AccessResult) context.Context {
	return context.WithValue(ctx, accessContextKey{}, res)
}

// Guard rejects requests without a valid bearer access token.
func Guard(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, status := authenticate(v, r)
			if status != 0 {
				http.Error(w, http.StatusText(status), status)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAccess(r.Context(), res)))
		})
	}
}

func authenticate(v Validator, r *http.Request) (*goSession.AccessResult, int) {
	if v == nil {
		return nil, http.StatusUnauthorized
	}

	header := r.Header.Get("Authorization")
	if strings.TrimSpace(header) == "" {
		return nil, http.StatusBadRequest
	}

	token, ok := bearerToken(header)
	if !ok {
		return nil, http.StatusUnauthorized
	}

	res, err := v.ValidateAccess(token)
	if err != nil {
		if errors.Is(err, goSession.ErrMissingToken) {
			return nil, http.StatusBadRequest
		}
		return nil, http.StatusUnauthorized
	}
	return res, 0
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
