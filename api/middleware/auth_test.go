package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/supplyhub-backend/internal/users"
	"github.com/angelmondragon/supplyhub-backend/pkg/auth"
	"github.com/angelmondragon/supplyhub-backend/pkg/config"
	"github.com/angelmondragon/supplyhub-backend/pkg/enums"
)

const testCookie = "token"

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "supplyhub", ExpirationMinutes: 60}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWTConfig(), testCookie, stubUserLoader{}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWTConfig(), testCookie, stubUserLoader{}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	cfg := testJWTConfig()
	user := testUser(enums.RoleVendor)
	token := mintTestToken(t, cfg, user, time.Now().Add(-2*time.Hour))
	handler := Auth(cfg, testCookie, stubUserLoader{user: user}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsDeletedUser(t *testing.T) {
	cfg := testJWTConfig()
	user := testUser(enums.RoleVendor)
	token := mintTestToken(t, cfg, user, time.Now())
	handler := Auth(cfg, testCookie, stubUserLoader{err: gorm.ErrRecordNotFound}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthLoaderFailureIsInternal(t *testing.T) {
	cfg := testJWTConfig()
	user := testUser(enums.RoleVendor)
	token := mintTestToken(t, cfg, user, time.Now())
	handler := Auth(cfg, testCookie, stubUserLoader{err: errors.New("db down")}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestAuthAllowsBearerToken(t *testing.T) {
	cfg := testJWTConfig()
	user := testUser(enums.RoleSupplier)
	token := mintTestToken(t, cfg, user, time.Now())

	var captured struct {
		user string
		role string
		dto  *users.UserDTO
	}
	handler := Auth(cfg, testCookie, stubUserLoader{user: user}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.dto = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.user != user.ID.String() {
		t.Fatalf("expected user %s got %s", user.ID, captured.user)
	}
	if captured.role != string(enums.RoleSupplier) {
		t.Fatalf("expected role supplier got %s", captured.role)
	}
	if captured.dto == nil || captured.dto.Email != user.Email {
		t.Fatalf("expected user dto in context, got %+v", captured.dto)
	}
}

func TestAuthFallsBackToCookie(t *testing.T) {
	cfg := testJWTConfig()
	user := testUser(enums.RoleVendor)
	token := mintTestToken(t, cfg, user, time.Now())
	handler := Auth(cfg, testCookie, stubUserLoader{user: user}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestAuthPrefersHeaderOverCookie(t *testing.T) {
	cfg := testJWTConfig()
	user := testUser(enums.RoleVendor)
	token := mintTestToken(t, cfg, user, time.Now())
	handler := Auth(cfg, testCookie, stubUserLoader{user: user}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "garbage"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected header token to win, got %d", resp.Code)
	}
}

func TestAuthorizeRoles(t *testing.T) {
	handler := AuthorizeRoles(nil, enums.RoleSupplier)(okHandler())

	cases := []struct {
		name string
		role string
		want int
	}{
		{name: "supplier", role: string(enums.RoleSupplier), want: http.StatusOK},
		{name: "vendor", role: string(enums.RoleVendor), want: http.StatusForbidden},
		{name: "no gate", role: "", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.role != "" {
				req = req.WithContext(WithRole(req.Context(), tc.role))
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.Code)
			}
		})
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func testUser(role enums.Role) *users.UserDTO {
	return &users.UserDTO{
		ID:    uuid.New(),
		Name:  "Test User",
		Email: "user@example.com",
		Role:  role,
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, user *users.UserDTO, now time.Time) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{UserID: user.ID, Role: user.Role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

type stubUserLoader struct {
	user *users.UserDTO
	err  error
}

func (s stubUserLoader) LoadDTO(ctx context.Context, id uuid.UUID) (*users.UserDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}
