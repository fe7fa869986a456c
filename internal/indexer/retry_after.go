package indexer

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// parseRetryAfter extracts a duration from the Retry-After response header.
// Supports both the seconds form ("30") and the HTTP-date form. Returns 0
// if the header is absent, unparseable, or already in the past.
func parseRetryAfter(header http.Header) time.Duration {
	val := header.Get("Retry-After")
	if val == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
		slog.Debug("indexer: parsed Retry-After as seconds", "seconds", seconds)
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(val); err == nil {
		if d := time.Until(t); d > 0 {
			slog.Debug("indexer: parsed Retry-After as HTTP-date", "duration", d)
			return d
		}
	}

	slog.Debug("indexer: unparseable Retry-After header", "value", val)
	return 0
}
