package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	if NormalizeLimit(0) != DefaultLimit {
		t.Fatalf("zero should normalize to default")
	}
	if NormalizeLimit(-3) != DefaultLimit {
		t.Fatalf("negative should normalize to default")
	}
	if NormalizeLimit(MaxLimit+50) != MaxLimit {
		t.Fatalf("oversized should cap at max")
	}
	if NormalizeLimit(10) != 10 {
		t.Fatalf("in-range should pass through")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{
		CreatedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		ID:        uuid.New(),
	}
	out, err := ParseCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("cursor did not round-trip: %+v", out)
	}
}

func TestParseCursorEmptyAndGarbage(t *testing.T) {
	out, err := ParseCursor("  ")
	if err != nil || out != nil {
		t.Fatalf("blank cursor should be nil,nil; got %v, %v", out, err)
	}
	if _, err := ParseCursor("!!!not-base64!!!"); err == nil {
		t.Fatalf("expected error for garbage cursor")
	}
}
