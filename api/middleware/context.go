package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/supplyhub-backend/internal/users"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
)

type principalKey struct{}

// principal is what the auth gate learned about the caller.
type principal struct {
	userID string
	role   string
	user   *users.UserDTO
}

func principalFrom(ctx context.Context) principal {
	if ctx == nil {
		return principal{}
	}
	p, _ := ctx.Value(principalKey{}).(principal)
	return p
}

func withPrincipal(ctx context.Context, edit func(*principal)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	p := principalFrom(ctx)
	edit(&p)
	return context.WithValue(ctx, principalKey{}, p)
}

func UserIDFromContext(ctx context.Context) string { return principalFrom(ctx).userID }

func RoleFromContext(ctx context.Context) string { return principalFrom(ctx).role }

// UserFromContext returns the user loaded by the auth gate, or nil.
func UserFromContext(ctx context.Context) *users.UserDTO { return principalFrom(ctx).user }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.userID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return withPrincipal(ctx, func(p *principal) { p.role = role })
}

// WithUser records user as the caller, replacing any id or role set before.
func WithUser(ctx context.Context, user *users.UserDTO) context.Context {
	if user == nil {
		return ctx
	}
	return withPrincipal(ctx, func(p *principal) {
		*p = principal{userID: user.ID.String(), role: string(user.Role), user: user}
	})
}

// CallerID parses the authenticated user's id; a missing or malformed id is
// a 401.
func CallerID(ctx context.Context) (uuid.UUID, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.Unauthorized("authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "authentication required")
	}
	return id, nil
}
