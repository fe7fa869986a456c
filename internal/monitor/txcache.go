package monitor

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Fantasim/bsvbank/internal/config"
)

// cachedTx is the confirmation snapshot kept in the bounded in-memory cache.
// It mirrors store.WatchedTx but stays package-private: the cache is a pure
// read-through optimization, never the system of record.
type cachedTx struct {
	Status        string
	Confirmations uint32
	BlockHeight   *int32
}

// txCache is a bounded, LRU-evicted view over recently observed
// transaction confirmation state. A miss here is not an error; callers
// fall through to durable storage and then to the indexer.
type txCache struct {
	cache *lru.Cache[string, cachedTx]
}

func newTxCache() *txCache {
	c, err := lru.New[string, cachedTx](config.DefaultTxCacheCapacity)
	if err != nil {
		// Only returned by lru.New for a non-positive size, which
		// config.DefaultTxCacheCapacity never is.
		panic(err)
	}
	return &txCache{cache: c}
}

func (c *txCache) Get(txid string) (cachedTx, bool) {
	return c.cache.Get(txid)
}

func (c *txCache) Put(txid string, v cachedTx) {
	c.cache.Add(txid, v)
}

func (c *txCache) Len() int {
	return c.cache.Len()
}
