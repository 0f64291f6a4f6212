package main

import (
	"testing"

	"github.com/unofficial-homecase/homecasebot/internal/ingest"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name   string
		result ingest.Result
		want   int
	}{
		{"saved new messages", ingest.Result{Found: 2, Saved: 2}, exitOK},
		{"partial parse failure with a save", ingest.Result{Found: 2, Saved: 1, Failed: 1}, exitOK},
		{"nothing found", ingest.Result{}, exitNoNew},
		{"everything already known", ingest.Result{Found: 3, Skipped: 3}, exitNoNew},
		{"all candidates failed to parse", ingest.Result{Found: 2, Failed: 2}, exitError},
	}

	for _, tc := range cases {
		if got := exitCodeFor(&tc.result); got != tc.want {
			t.Errorf("%s: exit code = %d, want %d", tc.name, got, tc.want)
		}
	}
}
