package monitor

import (
	"sync"

	"github.com/Fantasim/bsvbank/internal/store"
)

// watchedAddressSet is the in-memory snapshot of addresses being monitored,
// backed by durable storage. Reads from many goroutines (the poll loop,
// admission checks) share a read lock; writes are exclusive and
// write through to the store in the same critical section.
type watchedAddressSet struct {
	mu    sync.RWMutex
	store *store.Store
	addrs map[string]store.WatchedAddress
}

func newWatchedAddressSet(db *store.Store) *watchedAddressSet {
	return &watchedAddressSet{store: db, addrs: make(map[string]store.WatchedAddress)}
}

// LoadFromStore populates the in-memory snapshot from durable storage; call
// once at startup.
func (w *watchedAddressSet) LoadFromStore() error {
	rows, err := w.store.ListWatchedAddresses()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range rows {
		w.addrs[a.Address] = a
	}
	return nil
}

// Add registers a new watched address, persisting it before making it
// visible to readers.
func (w *watchedAddressSet) Add(addr store.WatchedAddress) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.store.AddWatchedAddress(addr); err != nil {
		return err
	}
	w.addrs[addr.Address] = addr
	return nil
}

// Snapshot returns the current set of watched addresses as a slice safe for
// the caller to range over without holding the lock.
func (w *watchedAddressSet) Snapshot() []store.WatchedAddress {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]store.WatchedAddress, 0, len(w.addrs))
	for _, a := range w.addrs {
		out = append(out, a)
	}
	return out
}

// Contains reports whether an address is currently watched.
func (w *watchedAddressSet) Contains(address string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.addrs[address]
	return ok
}
