package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/service"
)

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID     string
	Email      string
	SuperAdmin bool
}

// IdentityFrom extracts the authenticated identity from the context.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(*Identity)
	return id, ok
}

// Authenticator resolves session tokens into identities.
type Authenticator struct {
	auth   *service.AuthService
	logger *zap.Logger
}

// NewAuthenticator creates session authentication middleware.
func NewAuthenticator(auth *service.AuthService, logger *zap.Logger) *Authenticator {
	return &Authenticator{auth: auth, logger: logger}
}

// Authenticate requires a valid session token and attaches the identity to
// the request context. Tokens arrive as a bearer header or a session cookie.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing session token")
			return
		}

		session, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid or expired session")
			return
		}

		user, err := a.auth.GetUser(r.Context(), session.UserID)
		if err != nil {
			a.logger.Warn("session without user",
				zap.String("user_id", session.UserID),
				zap.Error(err))
			writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid or expired session")
			return
		}

		identity := &Identity{
			UserID:     user.ID,
			Email:      user.Email,
			SuperAdmin: user.SuperAdmin,
		}

		ctx := context.WithValue(r.Context(), IdentityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole guards library-scoped routes. The caller must hold one of the
// given roles in the library named by the route; super admins pass every
// check.
func RequireRole(libraries *service.LibraryService, roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing session token")
				return
			}

			if identity.SuperAdmin {
				next.ServeHTTP(w, r)
				return
			}

			libraryID := mux.Vars(r)["library_id"]
			if libraryID == "" {
				writeError(w, r, http.StatusForbidden, "FORBIDDEN", "no library in scope")
				return
			}

			membership, err := libraries.GetMembership(r.Context(), libraryID, identity.UserID)
			if err != nil {
				writeError(w, r, http.StatusForbidden, "FORBIDDEN", "not a member of this library")
				return
			}

			for _, role := range roles {
				if membership.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient role")
		})
	}
}

// RequireSuperAdmin guards platform-level routes.
func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHENTICATED", "missing session token")
			return
		}

		if !identity.SuperAdmin {
			writeError(w, r, http.StatusForbidden, "FORBIDDEN", "super admin only")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken reads the session token from the Authorization header or the
// session cookie.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}

	return ""
}

