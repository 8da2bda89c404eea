package profile

import (
	"testing"
	"time"
)

func TestStaleness(t *testing.T) {
	server := time.Date(2025, 6, 1, 12, 0, 10, 0, time.UTC)
	tolerance := 2 * time.Second

	cases := []struct {
		name     string
		clientMs int64
		want     Freshness
	}{
		{"no baseline", 0, NoBaseline},
		{"negative baseline", -1, NoBaseline},
		{"client matches server", server.UnixMilli(), Current},
		{"client ahead of server", server.Add(time.Second).UnixMilli(), Current},
		{"server ahead within tolerance", server.Add(-2 * time.Second).UnixMilli(), Current},
		{"server ahead just past tolerance", server.Add(-2001 * time.Millisecond).UnixMilli(), Stale},
		{"server far ahead", server.Add(-time.Hour).UnixMilli(), Stale},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Staleness(server, tc.clientMs, tolerance); got != tc.want {
				t.Fatalf("Staleness(%s, %d) = %v, want %v", server, tc.clientMs, got, tc.want)
			}
		})
	}
}

func TestStaleness_ZeroTolerance(t *testing.T) {
	server := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := Staleness(server, server.UnixMilli(), 0); got != Current {
		t.Fatalf("equal timestamps with zero tolerance should be Current, got %v", got)
	}
	if got := Staleness(server, server.Add(-time.Millisecond).UnixMilli(), 0); got != Stale {
		t.Fatalf("any server lead with zero tolerance should be Stale, got %v", got)
	}
}
