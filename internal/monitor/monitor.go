// Package monitor polls the external indexer for confirmation changes on
// watched transactions and for new UTXOs on watched addresses, emitting
// ConfirmationUpdate events as state changes are observed.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Fantasim/bsvbank/internal/config"
	"github.com/Fantasim/bsvbank/internal/indexer"
	"github.com/Fantasim/bsvbank/internal/spv"
	"github.com/Fantasim/bsvbank/internal/store"
)

// txFetcher is the subset of the indexer client the monitor depends on.
// Expressed as an interface so tests can substitute a fake without standing
// up an HTTP server.
type txFetcher interface {
	FetchTx(ctx context.Context, txid string) (*indexer.TxInfo, error)
	FetchUnspent(ctx context.Context, address string) ([]indexer.UnspentOutput, error)
}

// Monitor runs the blockchain confirmation poll loop: tracking watched
// transactions for confirmation-depth changes and watched addresses for new
// spendable outputs.
type Monitor struct {
	store    *store.Store
	fetcher  txFetcher
	verifier *spv.Verifier
	bus      *EventBus
	watched  *watchedAddressSet
	cache    *txCache

	minConfirmations uint32
	pollInterval     time.Duration
}

// New constructs a Monitor. Call LoadFromStore before Run to seed the
// watched-address snapshot from durable storage.
func New(db *store.Store, fetcher txFetcher, verifier *spv.Verifier, bus *EventBus, minConfirmations uint32, pollInterval time.Duration) *Monitor {
	return &Monitor{
		store:            db,
		fetcher:          fetcher,
		verifier:         verifier,
		bus:              bus,
		watched:          newWatchedAddressSet(db),
		cache:            newTxCache(),
		minConfirmations: minConfirmations,
		pollInterval:     pollInterval,
	}
}

// LoadFromStore seeds the in-memory watched-address snapshot from durable
// storage. Call once before Run.
func (m *Monitor) LoadFromStore() error {
	return m.watched.LoadFromStore()
}

// WatchAddress registers a new address for UTXO polling.
func (m *Monitor) WatchAddress(a store.WatchedAddress) error {
	return m.watched.Add(a)
}

// WatchTransaction begins tracking a transaction for confirmation-depth
// changes.
func (m *Monitor) WatchTransaction(txid string) error {
	return m.store.UpsertWatchedTx(store.WatchedTx{
		Txid:      txid,
		Status:    "pending",
		FirstSeen: time.Now(),
	})
}

// Run drives the poll loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor poll loop stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

// runCycle executes one pass of the poll cycle: reconcile pending
// transactions, then discover new UTXOs on watched addresses. Each item is
// isolated so that one failure never aborts the cycle.
func (m *Monitor) runCycle(ctx context.Context) {
	all, err := m.store.ListWatchedTxs()
	if err != nil {
		slog.Warn("monitor: failed to load watched transactions", "error", err)
		all = nil
	}
	known := make(map[string]struct{}, len(all))
	for _, w := range all {
		known[w.Txid] = struct{}{}
	}

	pending := boundedMostRecent(filterPending(all, m.minConfirmations), config.MaxPendingTxPerCycle)
	for _, w := range pending {
		if err := m.reconcileTx(ctx, w); err != nil {
			slog.Warn("monitor: skipping transaction after error", "txid", w.Txid, "error", err)
		}
	}

	for _, addr := range m.watched.Snapshot() {
		if err := m.discoverAddressUTXOs(ctx, addr, known); err != nil {
			slog.Warn("monitor: skipping address after error", "address", addr.Address, "error", err)
		}
	}
}

// filterPending returns the transactions still eligible for reconciliation:
// those not yet confirmed, or confirmed below the minimum threshold (a
// reorg can still drop them back down).
func filterPending(all []store.WatchedTx, minConfirmations uint32) []store.WatchedTx {
	out := make([]store.WatchedTx, 0, len(all))
	for _, w := range all {
		if w.Status != "confirmed" || w.Confirmations < minConfirmations {
			out = append(out, w)
		}
	}
	return out
}

// boundedMostRecent returns at most max entries, most recently first-seen
// first.
func boundedMostRecent(all []store.WatchedTx, max int) []store.WatchedTx {
	sort.Slice(all, func(i, j int) bool { return all[i].FirstSeen.After(all[j].FirstSeen) })
	if len(all) > max {
		return all[:max]
	}
	return all
}

// reconcileTx fetches a watched transaction's latest indexed state and, if
// its confirmation depth changed, persists the update, caches it, records
// an audit event, and broadcasts a ConfirmationUpdate.
func (m *Monitor) reconcileTx(ctx context.Context, w store.WatchedTx) error {
	info, err := m.fetcher.FetchTx(ctx, w.Txid)
	if err != nil {
		return err
	}

	var newConf uint32
	if info.Confirmations != nil {
		newConf = *info.Confirmations
	}

	if newConf == w.Confirmations && samePointer(info.BlockHeight, w.BlockHeight) {
		m.cache.Put(w.Txid, cachedTx{Status: w.Status, Confirmations: newConf, BlockHeight: info.BlockHeight})
		return nil
	}

	status := "pending"
	var confirmedAt *time.Time
	if newConf >= m.minConfirmations {
		status = "confirmed"
		now := time.Now()
		confirmedAt = &now
	}

	updated := store.WatchedTx{
		Txid:          w.Txid,
		Status:        status,
		Confirmations: newConf,
		BlockHeight:   info.BlockHeight,
		FirstSeen:     w.FirstSeen,
		ConfirmedAt:   confirmedAt,
		RawHex:        info.Hex,
	}
	if err := m.store.UpsertWatchedTx(updated); err != nil {
		return err
	}
	m.cache.Put(w.Txid, cachedTx{Status: status, Confirmations: newConf, BlockHeight: info.BlockHeight})

	detectedAt := time.Now()
	if err := m.store.RecordConfirmationEvent(w.Txid, w.Confirmations, newConf, info.BlockHeight, detectedAt); err != nil {
		slog.Warn("monitor: failed to record confirmation audit event", "txid", w.Txid, "error", err)
	}

	crossed := w.Confirmations < m.minConfirmations && newConf >= m.minConfirmations
	m.bus.Broadcast(ConfirmationUpdate{
		Txid:              w.Txid,
		OldConfirmations:  w.Confirmations,
		NewConfirmations:  newConf,
		BlockHeight:       info.BlockHeight,
		CrossedSufficient: crossed,
	})

	if info.BlockHash != nil && m.verifier != nil {
		if _, err := m.verifier.VerifyTransaction(ctx, w.Txid); err != nil {
			slog.Debug("monitor: opportunistic proof verification failed", "txid", w.Txid, "error", err)
		}
	}

	return nil
}

// discoverAddressUTXOs fetches the current UTXO set for a watched address
// and begins tracking any transaction hash not already watched.
func (m *Monitor) discoverAddressUTXOs(ctx context.Context, addr store.WatchedAddress, known map[string]struct{}) error {
	utxos, err := m.fetcher.FetchUnspent(ctx, addr.Address)
	if err != nil {
		return err
	}

	for _, u := range utxos {
		if _, tracked := known[u.TxHash]; tracked {
			continue
		}
		if err := m.store.UpsertWatchedTx(store.WatchedTx{
			Txid:        u.TxHash,
			Status:      "pending",
			BlockHeight: u.Height,
			FirstSeen:   time.Now(),
		}); err != nil {
			slog.Warn("monitor: failed to track new utxo", "address", addr.Address, "txid", u.TxHash, "error", err)
			continue
		}
		known[u.TxHash] = struct{}{}
	}
	return nil
}

// Stats is a point-in-time snapshot of the monitor's in-memory state,
// surfaced through the ops introspection endpoint.
type Stats struct {
	WatchedAddresses int
	CachedTx         int
	MinConfirmations uint32
	PollInterval     time.Duration
}

// Stats returns a snapshot of the monitor's current in-memory state.
func (m *Monitor) Stats() Stats {
	return Stats{
		WatchedAddresses: len(m.watched.Snapshot()),
		CachedTx:         m.cache.Len(),
		MinConfirmations: m.minConfirmations,
		PollInterval:     m.pollInterval,
	}
}

func samePointer(a, b *int32) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
