package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return s
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected database file to be created")
	}

	var mode string
	if err := s.Conn().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestMigrate(t *testing.T) {
	s := openTestStore(t)

	tables := []string{
		"channels", "channel_payments", "channel_states", "watched_transactions",
		"watched_addresses", "block_headers", "merkle_proofs", "confirmation_events",
		"schema_migrations",
	}
	for _, table := range tables {
		var name string
		err := s.Conn().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrateIdempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var count int
	if err := s.Conn().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("schema_migrations count = %d, want 2", count)
	}
}

func TestInsertAndGetChannel(t *testing.T) {
	s := openTestStore(t)

	c := ChannelRecord{
		ChannelID:       "chan-1",
		PartyA:          "alice",
		PartyB:          "bob",
		InitialBalanceA: 100000,
		InitialBalanceB: 100000,
		CurrentBalanceA: 100000,
		CurrentBalanceB: 100000,
		Status:          "open",
		Sequence:        0,
		TimeoutBlocks:   144,
		OpenedAt:        time.Now(),
	}
	if err := s.InsertChannel(c); err != nil {
		t.Fatalf("InsertChannel() error = %v", err)
	}

	got, err := s.GetChannel("chan-1")
	if err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	if got.PartyA != "alice" || got.PartyB != "bob" {
		t.Errorf("GetChannel() parties = %s/%s, want alice/bob", got.PartyA, got.PartyB)
	}
	if got.CurrentBalanceA != 100000 || got.CurrentBalanceB != 100000 {
		t.Errorf("GetChannel() balances = %d/%d, want 100000/100000", got.CurrentBalanceA, got.CurrentBalanceB)
	}
}

func TestGetChannel_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetChannel("nonexistent")
	if err == nil {
		t.Fatal("expected error for nonexistent channel")
	}
}

func TestApplyPayment(t *testing.T) {
	s := openTestStore(t)

	c := ChannelRecord{
		ChannelID:       "chan-pay",
		PartyA:          "alice",
		PartyB:          "bob",
		InitialBalanceA: 100000,
		InitialBalanceB: 100000,
		CurrentBalanceA: 100000,
		CurrentBalanceB: 100000,
		Status:          "open",
		Sequence:        0,
		TimeoutBlocks:   144,
		OpenedAt:        time.Now(),
	}
	if err := s.InsertChannel(c); err != nil {
		t.Fatalf("InsertChannel() error = %v", err)
	}

	err := s.ApplyPayment(PaymentRecord{
		ID:            "pay-1",
		ChannelID:     "chan-pay",
		From:          "alice",
		To:            "bob",
		Amount:        30000,
		Sequence:      1,
		BalanceAAfter: 70000,
		BalanceBAfter: 130000,
		CreatedAt:     time.Now(),
	}, 70000, 130000)
	if err != nil {
		t.Fatalf("ApplyPayment() error = %v", err)
	}

	got, err := s.GetChannel("chan-pay")
	if err != nil {
		t.Fatalf("GetChannel() error = %v", err)
	}
	if got.CurrentBalanceA != 70000 || got.CurrentBalanceB != 130000 {
		t.Errorf("balances after payment = %d/%d, want 70000/130000", got.CurrentBalanceA, got.CurrentBalanceB)
	}
	if got.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", got.Sequence)
	}
}

func TestApplyPayment_SequenceRegressionRejected(t *testing.T) {
	s := openTestStore(t)

	c := ChannelRecord{
		ChannelID:       "chan-seq",
		PartyA:          "alice",
		PartyB:          "bob",
		InitialBalanceA: 100000,
		InitialBalanceB: 100000,
		CurrentBalanceA: 100000,
		CurrentBalanceB: 100000,
		Status:          "open",
		Sequence:        5,
		TimeoutBlocks:   144,
		OpenedAt:        time.Now(),
	}
	if err := s.InsertChannel(c); err != nil {
		t.Fatalf("InsertChannel() error = %v", err)
	}

	// sequence 3 does not follow current sequence 5; the conditional UPDATE
	// (WHERE sequence = sequence-1) must affect zero rows.
	err := s.ApplyPayment(PaymentRecord{
		ID:            "pay-bad",
		ChannelID:     "chan-seq",
		From:          "bob",
		To:            "alice",
		Amount:        1000,
		Sequence:      3,
		BalanceAAfter: 101000,
		BalanceBAfter: 99000,
		CreatedAt:     time.Now(),
	}, 101000, 99000)
	if err == nil {
		t.Fatal("expected sequence regression error")
	}
}

func TestWatchedTxRoundTrip(t *testing.T) {
	s := openTestStore(t)

	err := s.UpsertWatchedTx(WatchedTx{
		Txid:          "abc123",
		Status:        "pending",
		Confirmations: 0,
		FirstSeen:     time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertWatchedTx() error = %v", err)
	}

	txs, err := s.ListWatchedTxs()
	if err != nil {
		t.Fatalf("ListWatchedTxs() error = %v", err)
	}
	if len(txs) != 1 || txs[0].Txid != "abc123" {
		t.Fatalf("ListWatchedTxs() = %+v, want one tx abc123", txs)
	}

	err = s.UpsertWatchedTx(WatchedTx{
		Txid:          "abc123",
		Status:        "confirmed",
		Confirmations: 6,
		FirstSeen:     time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertWatchedTx() update error = %v", err)
	}

	txs, err = s.ListWatchedTxs()
	if err != nil {
		t.Fatalf("ListWatchedTxs() error = %v", err)
	}
	if txs[0].Confirmations != 6 || txs[0].Status != "confirmed" {
		t.Errorf("ListWatchedTxs() after update = %+v, want confirmed/6", txs[0])
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	s := openTestStore(t)

	h := HeaderRow{
		Height:     100,
		Hash:       "hash100",
		Version:    1,
		PrevBlock:  "hash99",
		MerkleRoot: "root100",
		Timestamp:  1700000000,
		Bits:       0x1d00ffff,
		Nonce:      12345,
	}
	if err := s.InsertHeader(h); err != nil {
		t.Fatalf("InsertHeader() error = %v", err)
	}

	got, err := s.GetHeaderByHeight(100)
	if err != nil {
		t.Fatalf("GetHeaderByHeight() error = %v", err)
	}
	if got == nil || got.Hash != "hash100" {
		t.Fatalf("GetHeaderByHeight() = %+v, want hash100", got)
	}

	tip, err := s.GetTipHeader()
	if err != nil {
		t.Fatalf("GetTipHeader() error = %v", err)
	}
	if tip.Height != 100 {
		t.Errorf("GetTipHeader() height = %d, want 100", tip.Height)
	}

	if err := s.DeleteHeadersFrom(100); err != nil {
		t.Fatalf("DeleteHeadersFrom() error = %v", err)
	}
	tip, err = s.GetTipHeader()
	if err != nil {
		t.Fatalf("GetTipHeader() error = %v", err)
	}
	if tip != nil {
		t.Errorf("GetTipHeader() after delete = %+v, want nil", tip)
	}
}

func TestProofRoundTrip(t *testing.T) {
	s := openTestStore(t)

	p := ProofRow{
		Txid:       "txid1",
		MerkleRoot: "root1",
		Siblings:   []string{"s0", "s1", "s2"},
		TxIndex:    2,
		VerifiedAt: time.Now(),
	}
	if err := s.SaveProof(p); err != nil {
		t.Fatalf("SaveProof() error = %v", err)
	}

	got, err := s.GetProof("txid1")
	if err != nil {
		t.Fatalf("GetProof() error = %v", err)
	}
	if got == nil || len(got.Siblings) != 3 || got.Siblings[1] != "s1" {
		t.Fatalf("GetProof() = %+v, want siblings [s0 s1 s2]", got)
	}
}

func TestConfirmationEventAppendOnly(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordConfirmationEvent("tx1", 3, 0, nil, time.Now()); err != nil {
		t.Fatalf("RecordConfirmationEvent() error = %v", err)
	}
	if err := s.RecordConfirmationEvent("tx1", 0, 1, nil, time.Now()); err != nil {
		t.Fatalf("RecordConfirmationEvent() error = %v", err)
	}

	var count int
	if err := s.Conn().QueryRow("SELECT COUNT(*) FROM confirmation_events WHERE txid = ?", "tx1").Scan(&count); err != nil {
		t.Fatalf("count confirmation_events: %v", err)
	}
	if count != 2 {
		t.Errorf("confirmation_events count = %d, want 2 (append-only)", count)
	}
}
