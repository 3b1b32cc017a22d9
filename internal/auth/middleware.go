package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/utils"
)

type contextKey string

const staffKey contextKey = "staff"

type StaffResolver interface {
	Lookup(ctx context.Context, userID string) (*models.Staff, error)
}

// Middleware verifies the bearer token and attaches the caller's staff row
// to the request context. Callers without a token get 401; callers without
// a staff role get 403.
func Middleware(verifier Verifier, staff StaffResolver, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				utils.WriteError(w, models.ErrUnauthenticated)
				return
			}

			claims, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, models.ErrUnauthenticated)
				return
			}

			member, err := staff.Lookup(r.Context(), claims.Subject)
			if err != nil {
				if models.KindOf(err) == models.KindAuthorization {
					log.LogSecurity("NO_STAFF_ROLE", fmt.Sprintf("subject %s on %s", claims.Subject, r.URL.Path))
				} else {
					log.Error("AUTH", fmt.Sprintf("Staff lookup failed for %s: %v", claims.Subject, err))
				}
				utils.WriteError(w, err)
				return
			}
			if member.Email == "" {
				member.Email = claims.Email
			}
			if member.DisplayName == "" {
				member.DisplayName = claims.Name
			}

			next.ServeHTTP(w, r.WithContext(WithStaff(r.Context(), member)))
		})
	}
}

// RequireRole rejects callers whose role does not cover role. It must run
// after Middleware.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member := Staff(r.Context())
			if member == nil {
				utils.WriteError(w, models.ErrUnauthenticated)
				return
			}
			if !member.Role.Allows(role) {
				utils.WriteError(w, models.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithStaff(ctx context.Context, staff *models.Staff) context.Context {
	return context.WithValue(ctx, staffKey, staff)
}

// Staff returns the authenticated staff member, or nil.
func Staff(ctx context.Context) *models.Staff {
	if s, ok := ctx.Value(staffKey).(*models.Staff); ok {
		return s
	}
	return nil
}

// UserID is the subject of the authenticated caller.
func UserID(ctx context.Context) string {
	if s := Staff(ctx); s != nil {
		return s.UserID
	}
	return ""
}
