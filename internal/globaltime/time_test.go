package globaltime

import (
	"testing"
	"time"
)

func TestMockTime(t *testing.T) {
	local := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	SetMockTime(local)
	defer ResetTime()

	if got := UTC(); !got.Equal(local) || got.Location() != time.UTC {
		t.Fatalf("expected frozen UTC time %s, got %s", local.UTC(), got)
	}
	if got := Since(local.Add(-90 * time.Second)); got != 90*time.Second {
		t.Fatalf("expected 90s since, got %s", got)
	}

	ResetTime()
	if got := Since(local); got <= 0 {
		t.Fatalf("expected real clock after reset, got %s", got)
	}
}
