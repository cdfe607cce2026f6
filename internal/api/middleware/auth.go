package middleware

import (
	"context"
	"net/http"

	"capturesque/internal/common"
	"capturesque/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const identityCtxKey contextKey = "identity"

// Tier is the access level a route requires.
type Tier int

const (
	Public Tier = iota
	Authenticated
	Admin
)

// TokenVerifier is satisfied by *security.TokenManager and *service.AuthService.
type TokenVerifier interface {
	Verify(raw string) (model.Identity, error)
}

// Access gates routes by tier. Token problems are always reported before
// the role is looked at: 401 for a missing or expired token, 422 for a
// malformed one, 403 for a valid non-admin token on an admin route.
type Access struct {
	verifier TokenVerifier
}

func NewAccess(v TokenVerifier) *Access {
	return &Access{verifier: v}
}

func (a *Access) Require(tier Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if tier == Public {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.verifier.Verify(jwtauth.TokenFromHeader(r))
			if err != nil {
				common.RespondWithDomainError(w, common.HTTPStatusFromError(err), err)
				return
			}
			if tier == Admin && !id.IsAdmin {
				common.RespondWithError(w, http.StatusForbidden, "Admin access required")
				return
			}
			ctx := context.WithValue(r.Context(), identityCtxKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity stored by Require.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityCtxKey).(model.Identity)
	return id, ok
}
