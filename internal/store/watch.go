package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// WatchedTx is the durable record of a transaction the monitor tracks for
// confirmation changes.
type WatchedTx struct {
	Txid          string
	Status        string
	Confirmations uint32
	BlockHeight   *int32
	FirstSeen     time.Time
	ConfirmedAt   *time.Time
	RawHex        *string
}

// WatchedAddress is an address the monitor polls for new UTXOs.
type WatchedAddress struct {
	Address string
	Label   *string
	Purpose string
}

// UpsertWatchedTx inserts or updates a watched transaction.
func (s *Store) UpsertWatchedTx(w WatchedTx) error {
	var confirmedAt sql.NullString
	if w.ConfirmedAt != nil {
		confirmedAt = sql.NullString{String: w.ConfirmedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	var blockHeight sql.NullInt64
	if w.BlockHeight != nil {
		blockHeight = sql.NullInt64{Int64: int64(*w.BlockHeight), Valid: true}
	}

	_, err := s.conn.Exec(
		`INSERT INTO watched_transactions (txid, status, confirmations, block_height, first_seen, confirmed_at, raw_hex)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(txid) DO UPDATE SET
			status = excluded.status,
			confirmations = excluded.confirmations,
			block_height = excluded.block_height,
			confirmed_at = COALESCE(excluded.confirmed_at, watched_transactions.confirmed_at)`,
		w.Txid, w.Status, w.Confirmations, blockHeight,
		w.FirstSeen.UTC().Format(time.RFC3339Nano), confirmedAt, nullableString(w.RawHex),
	)
	if err != nil {
		return fmt.Errorf("upsert watched tx %s: %w", w.Txid, err)
	}
	return nil
}

// ListWatchedTxs returns all transactions currently tracked by the monitor.
func (s *Store) ListWatchedTxs() ([]WatchedTx, error) {
	rows, err := s.conn.Query(
		`SELECT txid, status, confirmations, block_height, first_seen, confirmed_at, raw_hex FROM watched_transactions`,
	)
	if err != nil {
		return nil, fmt.Errorf("list watched transactions: %w", err)
	}
	defer rows.Close()

	var out []WatchedTx
	for rows.Next() {
		var w WatchedTx
		var blockHeight sql.NullInt64
		var firstSeen string
		var confirmedAt, rawHex sql.NullString

		if err := rows.Scan(&w.Txid, &w.Status, &w.Confirmations, &blockHeight, &firstSeen, &confirmedAt, &rawHex); err != nil {
			return nil, fmt.Errorf("scan watched tx row: %w", err)
		}
		w.FirstSeen, _ = time.Parse(time.RFC3339Nano, firstSeen)
		if blockHeight.Valid {
			h := int32(blockHeight.Int64)
			w.BlockHeight = &h
		}
		if confirmedAt.Valid {
			t, _ := time.Parse(time.RFC3339Nano, confirmedAt.String)
			w.ConfirmedAt = &t
		}
		if rawHex.Valid {
			w.RawHex = &rawHex.String
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// AddWatchedAddress registers an address for UTXO polling.
func (s *Store) AddWatchedAddress(a WatchedAddress) error {
	_, err := s.conn.Exec(
		`INSERT INTO watched_addresses (address, label, purpose) VALUES (?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET label = excluded.label, purpose = excluded.purpose`,
		a.Address, nullableString(a.Label), a.Purpose,
	)
	if err != nil {
		return fmt.Errorf("add watched address %s: %w", a.Address, err)
	}
	slog.Debug("watched address registered", "address", a.Address, "purpose", a.Purpose)
	return nil
}

// ListWatchedAddresses returns all addresses the monitor polls.
func (s *Store) ListWatchedAddresses() ([]WatchedAddress, error) {
	rows, err := s.conn.Query(`SELECT address, label, purpose FROM watched_addresses`)
	if err != nil {
		return nil, fmt.Errorf("list watched addresses: %w", err)
	}
	defer rows.Close()

	var out []WatchedAddress
	for rows.Next() {
		var a WatchedAddress
		var label sql.NullString
		if err := rows.Scan(&a.Address, &label, &a.Purpose); err != nil {
			return nil, fmt.Errorf("scan watched address row: %w", err)
		}
		if label.Valid {
			a.Label = &label.String
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordConfirmationEvent appends an audit record of a confirmation change.
// This table is append-only by design; it is never updated or pruned.
func (s *Store) RecordConfirmationEvent(txid string, oldConf, newConf uint32, blockHeight *int32, detectedAt time.Time) error {
	var bh sql.NullInt64
	if blockHeight != nil {
		bh = sql.NullInt64{Int64: int64(*blockHeight), Valid: true}
	}
	_, err := s.conn.Exec(
		`INSERT INTO confirmation_events (txid, old_confirmations, new_confirmations, block_height, detected_at)
		 VALUES (?, ?, ?, ?, ?)`,
		txid, oldConf, newConf, bh, detectedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record confirmation event for %s: %w", txid, err)
	}
	return nil
}
