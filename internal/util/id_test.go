package util

import (
	"encoding/hex"
	"testing"
)

func TestNewSessionID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		if len(id) != SessionIDLength {
			t.Fatalf("length: got %d, want %d", len(id), SessionIDLength)
		}
		if _, err := hex.DecodeString(id); err != nil {
			t.Fatalf("%q is not hex: %v", id, err)
		}
		seen[id] = true
	}
	if len(seen) < 99 {
		t.Errorf("only %d distinct ids out of 100", len(seen))
	}
}

func TestFormatBytes(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
	}
	for _, tc := range testCases {
		if got := formatBytes(tc.in); got != tc.want {
			t.Errorf("formatBytes(%v): got %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := FormatBytes(1536); got != "1.5 KiB" {
		t.Errorf("FormatBytes: got %q", got)
	}
}
