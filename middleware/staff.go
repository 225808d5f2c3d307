package middleware

import (
	"net/http"
)

// RequireStaff is [Guard] plus a staff-claim check. Non-staff callers get 403.
func RequireStaff(v Validator) func(http.Handler) http.Handler {
	guard := Guard(v)
	return func(next http.Handler) http.Handler {
		return guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, _ := AccessFromContext(r.Context())
			if !res.Staff {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
