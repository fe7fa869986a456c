package indexer

import (
	"net/http"
	"testing"
	"time"
)

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantZero bool
		want     time.Duration
	}{
		{name: "missing header", header: "", wantZero: true},
		{name: "seconds format", header: "30", want: 30 * time.Second},
		{name: "zero seconds", header: "0", wantZero: true},
		{name: "negative seconds", header: "-5", wantZero: true},
		{name: "garbage value", header: "not-a-number", wantZero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := make(http.Header)
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			got := parseRetryAfter(h)
			if tt.wantZero {
				if got != 0 {
					t.Errorf("parseRetryAfter() = %v, want 0", got)
				}
				return
			}
			if got != tt.want {
				t.Errorf("parseRetryAfter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRetryAfterHTTPDate(t *testing.T) {
	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	h := make(http.Header)
	h.Set("Retry-After", future)

	got := parseRetryAfter(h)
	if got <= 0 || got > 11*time.Second {
		t.Errorf("parseRetryAfter(future HTTP-date) = %v, want (0, 11s]", got)
	}

	past := time.Now().Add(-10 * time.Second).UTC().Format(http.TimeFormat)
	h2 := make(http.Header)
	h2.Set("Retry-After", past)

	if got2 := parseRetryAfter(h2); got2 != 0 {
		t.Errorf("parseRetryAfter(past HTTP-date) = %v, want 0", got2)
	}
}
