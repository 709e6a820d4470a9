package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -5: DefaultLimit, 10: 10, MaxLimit + 50: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d want %d", in, got, want)
		}
	}
	if LimitWithBuffer(10) != 11 {
		t.Fatal("expected buffer of one row")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 12, 30, 0, 123, time.UTC), ID: uuid.New()}
	encoded := EncodeCursor(in)
	if strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("cursor %q is not query-string safe", encoded)
	}
	out, err := ParseCursor(encoded)
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("cursor mismatch: %+v vs %+v", out, in)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("blank cursor should be nil, got %v %v", c, err)
	}
	bad := []string{
		"%%%",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday." + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte("-5." + uuid.NewString())),
		base64.RawURLEncoding.EncodeToString([]byte("1700000000000000000.not-a-uuid")),
	}
	for _, value := range bad {
		if _, err := ParseCursor(value); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("expected %q to fail with ErrInvalidCursor, got %v", value, err)
		}
	}
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 0, 4)
	for i := 0; i < 4; i++ {
		rows = append(rows, Cursor{CreatedAt: base.Add(-time.Duration(i) * time.Minute), ID: uuid.New()})
	}
	identity := func(c Cursor) Cursor { return c }

	page, next := Trim(rows, 3, identity)
	if len(page) != 3 || next == "" {
		t.Fatalf("expected trimmed page with cursor, got %d %q", len(page), next)
	}
	decoded, err := ParseCursor(next)
	if err != nil || decoded.ID != rows[2].ID {
		t.Fatalf("next cursor should point at last returned row: %v %v", decoded, err)
	}

	page, next = Trim(rows[:2], 3, identity)
	if len(page) != 2 || next != "" {
		t.Fatalf("expected final page without cursor, got %d %q", len(page), next)
	}
}
