package opsapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Fantasim/bsvbank/internal/channel"
	"github.com/Fantasim/bsvbank/internal/monitor"
	"github.com/Fantasim/bsvbank/internal/store"
)

// Dependencies holds the service references the ops surface reports on.
// It deliberately knows nothing about individual channels or transactions;
// that belongs to the business surface, not here.
type Dependencies struct {
	Store     *store.Store
	Monitor   *monitor.Monitor
	Channels  *channel.Manager
	Version   string
	StartedAt time.Time
}

// HealthHandler answers GET /healthz: process liveness only, no
// dependency checks. Always returns 200 as long as the process can run a
// handler at all.
func HealthHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]interface{}{
			"status":  "ok",
			"version": deps.Version,
			"uptime":  time.Since(deps.StartedAt).String(),
		})
	}
}

// ReadyHandler answers GET /readyz: whether the process is ready to serve,
// i.e. its database connection is reachable. Returns 503 when it is not.
func ReadyHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Store.Conn().PingContext(ctx); err != nil {
			JSONError(w, http.StatusServiceUnavailable, "store_unreachable", err.Error())
			return
		}
		JSON(w, http.StatusOK, map[string]interface{}{"status": "ready"})
	}
}

// StatusHandler answers GET /statusz: a point-in-time introspection
// snapshot of the monitor's poll state and open-channel count. Intended
// for operators, not for driving application logic.
func StatusHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		openChannels, err := deps.Store.ListOpenChannels()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}

		stats := deps.Monitor.Stats()
		JSON(w, http.StatusOK, map[string]interface{}{
			"version":           deps.Version,
			"uptime":            time.Since(deps.StartedAt).String(),
			"open_channels":     len(openChannels),
			"watched_addresses": stats.WatchedAddresses,
			"cached_tx":         stats.CachedTx,
			"min_confirmations": stats.MinConfirmations,
			"poll_interval":     stats.PollInterval.String(),
		})
	}
}
