// Package auth exposes the account endpoints and owns the auth cookie.
package auth

import (
	"context"
	"net/http"

	"github.com/angelmondragon/supplyhub-backend/api/middleware"
	"github.com/angelmondragon/supplyhub-backend/api/responses"
	"github.com/angelmondragon/supplyhub-backend/api/validators"
	"github.com/angelmondragon/supplyhub-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
)

var errServiceUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")

// Register creates an account, sets the auth cookie and answers 201.
func Register(svc auth.Service, cookies CookieSettings, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return startSession(svc.Register, http.StatusCreated, cookies, logg)
}

// Login verifies credentials, sets the auth cookie and answers 200.
func Login(svc auth.Service, cookies CookieSettings, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return startSession(svc.Login, http.StatusOK, cookies, logg)
}

// startSession decodes a Req body, hands it to open and, on success, stores
// the issued token in the cookie as well as returning it in the body.
func startSession[Req any](
	open func(context.Context, Req) (*auth.SessionResponse, error),
	status int,
	cookies CookieSettings,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body Req
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := open(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		SetAuthCookie(w, cookies, session.Token)
		responses.WriteSuccessStatus(w, status, session)
	}
}

func unavailable(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, errServiceUnavailable)
	}
}

// Profile returns the caller's profile without the password hash.
func Profile(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.CallerID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Profile(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// Logout clears the cookie. Tokens are stateless, so nothing is revoked.
func Logout(cookies CookieSettings) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		ClearAuthCookie(w, cookies)
		responses.WriteSuccess(w, map[string]string{"message": "logged out"})
	}
}
