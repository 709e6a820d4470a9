// Package auth mints and verifies the HS256 access tokens carried in the
// auth cookie or the Authorization header.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
)

const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

// ErrInvalidToken is the only reason a client is ever told.
var ErrInvalidToken = errors.New("invalid or expired token")

func checkSigningConfig(cfg config.JWTConfig) error {
	var errs []error
	if cfg.Secret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if cfg.Issuer == "" {
		errs = append(errs, errors.New("jwt issuer is required"))
	}
	if cfg.ExpirationMinutes <= 0 {
		errs = append(errs, errors.New("jwt expiration minutes must be positive"))
	}
	return errors.Join(errs...)
}

// MintAccessToken signs a token for payload that expires cfg.TTL() after now.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return "", err
	}
	switch {
	case payload.UserID == uuid.Nil:
		return "", errors.New("user id is required")
	case !payload.Role.IsValid():
		return "", fmt.Errorf("invalid role %q", payload.Role)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}
	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL())),
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry. Any failure comes
// back as UNAUTHORIZED with ErrInvalidToken's text; the cause stays in the
// chain for logs.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, pkgerrors.Internal(errors.New("jwt secret is required"), "token verification unavailable")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, invalid(err)
	}
	if claims.UserID == uuid.Nil {
		return nil, invalid(errors.New("token has no user id"))
	}
	if claims.Subject != "" && claims.Subject != claims.UserID.String() {
		return nil, invalid(errors.New("subject does not match user id"))
	}
	return claims, nil
}

func invalid(cause error) error {
	return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, ErrInvalidToken.Error())
}
