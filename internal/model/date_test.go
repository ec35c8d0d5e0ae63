package model

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-10-16", time.Date(2026, 10, 16, 0, 0, 0, 0, time.Local)},
		{" 2026-10-16 09:30 ", time.Date(2026, 10, 16, 9, 30, 0, 0, time.Local)},
		{"2026-10-16T09:30", time.Date(2026, 10, 16, 9, 30, 0, 0, time.Local)},
		{"2026-10-16T09:30:00Z", time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "tomorrow", "2026-13-01", "16/10/2026"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("expected ParseDate(%q) to fail", bad)
		}
	}
}
