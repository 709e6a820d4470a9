package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/supplyhub-backend/api/responses"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

// AuthorizeRoles admits callers whose role, as attached by Auth, is one of
// allowed. No role at all is a 401; the wrong role is a 403.
func AuthorizeRoles(logg *logger.Logger, allowed ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.Role(RoleFromContext(r.Context()))
			switch {
			case role == "":
				responses.WriteError(r.Context(), logg, w, pkgerrors.Unauthorized("authentication required"))
			case !slices.Contains(allowed, role):
				responses.WriteError(r.Context(), logg, w, pkgerrors.Forbidden("role not permitted"))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
