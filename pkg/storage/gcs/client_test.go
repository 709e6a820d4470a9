package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func staticTokenSource(token string) *tokenSource {
	return &tokenSource{
		fetch: func(context.Context) (string, time.Time, error) {
			return token, time.Now().Add(time.Hour), nil
		},
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newClient(srv.Client(), "bucket", srv.URL, "https://cdn.example.com", staticTokenSource("tok"), nil)
}

func TestUploadReturnsPublicURL(t *testing.T) {
	var gotBody, gotName, gotType, gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload/storage/v1/b/bucket/o" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotName = r.URL.Query().Get("name")
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"products/a.png"}`))
	}))

	u, err := client.Upload(context.Background(), "products/a.png", "image/png", strings.NewReader("pixels"))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if u != "https://cdn.example.com/bucket/products/a.png" {
		t.Fatalf("unexpected url %q", u)
	}
	if gotName != "products/a.png" || gotType != "image/png" || gotAuth != "Bearer tok" || gotBody != "pixels" {
		t.Fatalf("unexpected upload request name=%q type=%q auth=%q body=%q", gotName, gotType, gotAuth, gotBody)
	}
}

func TestUploadSurfacesAPIErrors(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))

	_, err := client.Upload(context.Background(), "products/a.png", "", strings.NewReader("x"))
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusForbidden || apiErr.Body != "quota exceeded" {
		t.Fatalf("expected APIError with body, got %v", err)
	}
	if _, err := client.Upload(context.Background(), "  ", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected empty object name to fail")
	}
}

func TestDeleteAcceptsPublicURL(t *testing.T) {
	var deleted atomic.Value
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		deleted.Store(r.URL.EscapedPath())
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.Delete(context.Background(), "https://cdn.example.com/bucket/products/a.png"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if got := deleted.Load().(string); got != "/storage/v1/b/bucket/o/products%2Fa.png" {
		t.Fatalf("unexpected delete path %q", got)
	}
	if err := client.Delete(context.Background(), "products/missing.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestObjectName(t *testing.T) {
	client := newClient(http.DefaultClient, "bucket", defaultAPIBase, "", staticTokenSource("tok"), nil)
	cases := map[string]string{
		"https://storage.googleapis.com/bucket/products/x%20y.pdf": "products/x y.pdf",
		"/products/raw.png":                   "products/raw.png",
		"https://elsewhere.com/bucket/z.png":  "https://elsewhere.com/bucket/z.png",
	}
	for in, want := range cases {
		if got := client.ObjectName(in); got != want {
			t.Fatalf("ObjectName(%q) = %q want %q", in, got, want)
		}
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/b/bucket/o" || r.URL.Query().Get("maxResults") != "1" {
			t.Errorf("unexpected ping request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}

	var nilClient *Client
	if err := nilClient.Ping(context.Background()); err == nil {
		t.Fatal("expected nil client ping to fail")
	}
}
