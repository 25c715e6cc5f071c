package idgen

import (
	"strconv"
	"strings"
	"testing"
)

func TestNanoID_Length(t *testing.T) {
	for _, length := range []int{8, 9, 12, 24} {
		gen := NanoID(length)
		id := gen()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
	}
}

func TestNanoID_Alphabet(t *testing.T) {
	gen := NanoID(100)
	id := gen()
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("NanoID: unexpected character %q in %q", c, id)
		}
	}
}

func TestNanoID_Uniqueness(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("NanoID: duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestSession_Shape(t *testing.T) {
	id := Session()
	if !strings.HasPrefix(id, "sess_") {
		t.Fatalf("Session: expected prefix 'sess_', got %q", id)
	}
	parts := strings.Split(id, "_")
	if len(parts) != 3 {
		t.Fatalf("Session: expected 3 parts, got %d in %q", len(parts), id)
	}
	if len(parts[1]) != 9 {
		t.Fatalf("Session: expected 9-char core, got %q", parts[1])
	}
	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		t.Fatalf("Session: timestamp suffix not numeric: %q", parts[2])
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("env_", NanoID(8))
	id := gen()
	if !strings.HasPrefix(id, "env_") {
		t.Fatalf("Prefixed: expected prefix 'env_', got %q", id)
	}
}
