package auth

import (
	"net/http"
	"time"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
)

// CookieSettings controls the auth cookie written on register and login.
type CookieSettings struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

// NewCookieSettings derives the cookie policy from config. Cookies are
// Secure in production.
func NewCookieSettings(cfg *config.Config) CookieSettings {
	secure := cfg.App.IsProd()
	return CookieSettings{
		Name:     cfg.Cookie.Name,
		Domain:   cfg.Cookie.Domain,
		Secure:   secure,
		SameSite: cfg.Cookie.SameSiteMode(secure),
		TTL:      cfg.JWT.TTL(),
	}
}

// SetAuthCookie stores token in an HttpOnly cookie that lives as long as the token.
func SetAuthCookie(w http.ResponseWriter, s CookieSettings, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Name,
		Value:    token,
		Path:     "/",
		Domain:   s.Domain,
		MaxAge:   int(s.TTL / time.Second),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}

// ClearAuthCookie expires the auth cookie immediately.
func ClearAuthCookie(w http.ResponseWriter, s CookieSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.Name,
		Value:    "",
		Path:     "/",
		Domain:   s.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}
