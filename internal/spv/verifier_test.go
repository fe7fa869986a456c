package spv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Fantasim/bsvbank/internal/bankerr"
	"github.com/Fantasim/bsvbank/internal/store"
)

type fakeFetcher struct {
	proofs  map[string]*MerkleProof
	headers map[string]*BlockHeader
	tip     *BlockHeader
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{proofs: map[string]*MerkleProof{}, headers: map[string]*BlockHeader{}}
}

func (f *fakeFetcher) FetchProof(_ context.Context, txid string) (*MerkleProof, error) {
	p, ok := f.proofs[txid]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (f *fakeFetcher) FetchHeader(_ context.Context, heightOrHash string) (*BlockHeader, error) {
	h, ok := f.headers[heightOrHash]
	if !ok {
		return nil, nil
	}
	return h, nil
}

func (f *fakeFetcher) ChainTip(_ context.Context) (*BlockHeader, error) {
	if f.tip == nil {
		return nil, bankerr.IndexerUnreachable(nil)
	}
	return f.tip, nil
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "spv.sqlite"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestVerifier_VerifyTransaction_UsesCachedProof(t *testing.T) {
	db := openTestStore(t)

	txid := hexHash(0x01)
	s0 := hexHash(0x02)
	root := foldForTest(t, txid, []string{s0}, 0)
	height := int32(500)

	if err := db.SaveProof(store.ProofRow{
		Txid: txid, MerkleRoot: root, Siblings: []string{s0}, TxIndex: 0, BlockHeight: &height,
	}); err != nil {
		t.Fatalf("SaveProof() error = %v", err)
	}

	genesis := buildHeader(t, 500, hexHash(0xff), 1_600_000_000)
	tip := buildHeader(t, 503, hexHash(0xfe), 1_600_000_100)
	for _, h := range []BlockHeader{genesis, tip} {
		if err := db.InsertHeader(store.HeaderRow{
			Height: h.Height, Hash: h.Hash, Version: h.Version, PrevBlock: h.PrevBlock,
			MerkleRoot: h.MerkleRoot, Timestamp: h.Timestamp, Bits: h.Bits, Nonce: h.Nonce,
		}); err != nil {
			t.Fatalf("InsertHeader() error = %v", err)
		}
	}

	v := New(db, newFakeFetcher(), 1)
	result, err := v.VerifyTransaction(context.Background(), txid)
	if err != nil {
		t.Fatalf("VerifyTransaction() error = %v", err)
	}
	if !result.Verified {
		t.Fatal("expected Verified = true")
	}
	if result.Confirmations != 4 {
		t.Errorf("confirmations = %d, want 4 (503-500+1)", result.Confirmations)
	}
	if !result.Sufficient {
		t.Error("expected Sufficient = true with min_confirmations=1")
	}
}

func TestVerifier_VerifyTransaction_MerkleMismatchIsIntegrityError(t *testing.T) {
	db := openTestStore(t)

	txid := hexHash(0x01)
	s0 := hexHash(0x02)
	badRoot := hexHash(0x99)

	if err := db.SaveProof(store.ProofRow{
		Txid: txid, MerkleRoot: badRoot, Siblings: []string{s0}, TxIndex: 0,
	}); err != nil {
		t.Fatalf("SaveProof() error = %v", err)
	}

	v := New(db, newFakeFetcher(), 1)
	_, err := v.VerifyTransaction(context.Background(), txid)
	if err == nil {
		t.Fatal("expected MerkleMismatch error")
	}
	if !bankerr.IsKind(err, bankerr.KindIntegrity) {
		t.Errorf("expected Integrity-kind error, got %v", err)
	}
}

func TestVerifier_VerifyTransaction_FetchesAndCachesOnMiss(t *testing.T) {
	db := openTestStore(t)

	txid := hexHash(0x01)
	s0 := hexHash(0x02)
	root := foldForTest(t, txid, []string{s0}, 0)

	fetcher := newFakeFetcher()
	fetcher.proofs[txid] = &MerkleProof{Txid: txid, MerkleRoot: root, Siblings: []string{s0}, TxIndex: 0}

	v := New(db, fetcher, 1)
	if _, err := v.VerifyTransaction(context.Background(), txid); err != nil {
		t.Fatalf("VerifyTransaction() error = %v", err)
	}

	cached, err := db.GetProof(txid)
	if err != nil {
		t.Fatalf("GetProof() error = %v", err)
	}
	if cached == nil {
		t.Fatal("expected proof to be cached after indexer fetch")
	}
}

func TestVerifier_IngestHeader_RejectsDiscontinuity(t *testing.T) {
	db := openTestStore(t)
	v := New(db, newFakeFetcher(), 1)

	genesis := buildHeader(t, 100, hexHash(0x01), 1_600_000_000)
	if err := v.IngestHeader(genesis); err != nil {
		t.Fatalf("IngestHeader(genesis) error = %v", err)
	}

	badSuccessor := buildHeader(t, 105, genesis.Hash, 1_600_000_010)
	if err := v.IngestHeader(badSuccessor); err == nil {
		t.Fatal("expected error ingesting a discontinuous header")
	}
}

func TestDetectReorg_NoReorgWhenTipsMatch(t *testing.T) {
	db := openTestStore(t)
	genesis := buildHeader(t, 100, hexHash(0x01), 1_600_000_000)
	if err := db.InsertHeader(store.HeaderRow{
		Height: genesis.Height, Hash: genesis.Hash, PrevBlock: genesis.PrevBlock,
		MerkleRoot: genesis.MerkleRoot, Timestamp: genesis.Timestamp, Bits: genesis.Bits,
	}); err != nil {
		t.Fatalf("InsertHeader() error = %v", err)
	}

	fetcher := newFakeFetcher()
	fetcher.tip = &genesis

	v := New(db, fetcher, 1)
	report, err := v.DetectReorg(context.Background(), 10)
	if err != nil {
		t.Fatalf("DetectReorg() error = %v", err)
	}
	if report.Reorged {
		t.Error("expected no reorg when tips match")
	}
}

func TestDetectReorg_FindsCommonAncestorAndEvicts(t *testing.T) {
	db := openTestStore(t)

	g := buildHeader(t, 100, hexHash(0x01), 1_600_000_000)
	a101 := buildHeader(t, 101, g.Hash, 1_600_000_010)
	a102 := buildHeader(t, 102, a101.Hash, 1_600_000_020)

	for _, h := range []BlockHeader{g, a101, a102} {
		if err := db.InsertHeader(store.HeaderRow{
			Height: h.Height, Hash: h.Hash, PrevBlock: h.PrevBlock,
			MerkleRoot: h.MerkleRoot, Timestamp: h.Timestamp, Bits: h.Bits,
		}); err != nil {
			t.Fatalf("InsertHeader() error = %v", err)
		}
	}

	// Remote chain forks at height 101 with a different block.
	b101 := buildHeader(t, 101, g.Hash, 1_600_000_011)
	b102 := buildHeader(t, 102, b101.Hash, 1_600_000_021)

	fetcher := newFakeFetcher()
	fetcher.tip = &b102
	fetcher.headers[g.Hash] = &g // common ancestor lookup walks backward by local hash

	v := New(db, fetcher, 1)
	report, err := v.DetectReorg(context.Background(), 10)
	if err != nil {
		t.Fatalf("DetectReorg() error = %v", err)
	}
	if !report.Reorged {
		t.Fatal("expected reorg to be detected")
	}
	if report.CommonAncestor != 100 {
		t.Errorf("common ancestor = %d, want 100", report.CommonAncestor)
	}
	if report.Depth != 2 {
		t.Errorf("depth = %d, want 2", report.Depth)
	}

	remaining, err := db.GetHeaderByHeight(101)
	if err != nil {
		t.Fatalf("GetHeaderByHeight() error = %v", err)
	}
	if remaining != nil {
		t.Error("expected header at height 101 to be evicted after reorg")
	}
}
