package spv

import (
	"context"
	"log/slog"
	"time"

	"github.com/Fantasim/bsvbank/internal/bankerr"
	"github.com/Fantasim/bsvbank/internal/store"
)

// Verifier resolves transaction confirmations against a header chain cached
// in durable storage, falling back to an indexer Fetcher on cache misses.
type Verifier struct {
	store            *store.Store
	fetcher          Fetcher
	minConfirmations uint32
}

// New creates a Verifier backed by db for caching and fetcher for indexer access.
func New(db *store.Store, fetcher Fetcher, minConfirmations uint32) *Verifier {
	return &Verifier{store: db, fetcher: fetcher, minConfirmations: minConfirmations}
}

// VerifyTransaction resolves a transaction's inclusion proof (from cache or
// the indexer), validates the Merkle branch, and reports its confirmation
// depth against the locally cached chain tip.
func (v *Verifier) VerifyTransaction(ctx context.Context, txid string) (*VerificationResult, error) {
	proof, err := v.resolveProof(ctx, txid)
	if err != nil {
		return nil, err
	}
	if proof == nil {
		return &VerificationResult{Verified: false}, nil
	}

	ok, err := VerifyMerkle(proof.Txid, proof.Siblings, proof.TxIndex, proof.MerkleRoot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, bankerr.MerkleMismatch(txid)
	}

	if proof.BlockHeight == nil {
		return &VerificationResult{Verified: true, Confirmations: 0}, nil
	}

	tip, err := v.store.GetTipHeader()
	if err != nil {
		return nil, bankerr.DatabaseConsistencyViolation("read tip header: " + err.Error())
	}

	var confirmations uint32
	if tip != nil && tip.Height >= *proof.BlockHeight {
		confirmations = uint32(tip.Height-*proof.BlockHeight) + 1
	}

	result := &VerificationResult{
		Verified:      true,
		Confirmations: confirmations,
		BlockHeight:   proof.BlockHeight,
		Sufficient:    confirmations >= v.minConfirmations,
	}

	slog.Debug("spv verification complete",
		"txid", txid,
		"confirmations", confirmations,
		"sufficient", result.Sufficient,
	)

	return result, nil
}

// resolveProof returns a cached proof when available, otherwise fetches and
// persists one from the indexer.
func (v *Verifier) resolveProof(ctx context.Context, txid string) (*MerkleProof, error) {
	cached, err := v.store.GetProof(txid)
	if err != nil {
		return nil, bankerr.DatabaseConsistencyViolation("read cached proof: " + err.Error())
	}
	if cached != nil {
		return &MerkleProof{
			Txid:        cached.Txid,
			MerkleRoot:  cached.MerkleRoot,
			Siblings:    cached.Siblings,
			TxIndex:     cached.TxIndex,
			BlockHash:   cached.BlockHash,
			BlockHeight: cached.BlockHeight,
		}, nil
	}

	proof, err := v.fetcher.FetchProof(ctx, txid)
	if err != nil {
		return nil, err
	}
	if proof == nil {
		return nil, nil
	}

	if err := v.store.SaveProof(store.ProofRow{
		Txid:        proof.Txid,
		BlockHash:   proof.BlockHash,
		BlockHeight: proof.BlockHeight,
		MerkleRoot:  proof.MerkleRoot,
		Siblings:    proof.Siblings,
		TxIndex:     proof.TxIndex,
		VerifiedAt:  time.Now(),
	}); err != nil {
		slog.Warn("spv: failed to cache proof", "txid", txid, "error", err)
	}

	return proof, nil
}

// IngestHeader validates a single header against the cached tip (if one
// exists) and persists it on success.
func (v *Verifier) IngestHeader(h BlockHeader) error {
	tip, err := v.store.GetTipHeader()
	if err != nil {
		return bankerr.DatabaseConsistencyViolation("read tip header: " + err.Error())
	}

	if tip != nil {
		if err := ValidateChain([]BlockHeader{headerFromRow(*tip), h}); err != nil {
			return err
		}
	} else if ok, err := VerifyHeaderHash(h); err != nil {
		return err
	} else if !ok {
		return bankerr.HeaderHashMismatch(h.Height)
	}

	return v.store.InsertHeader(store.HeaderRow{
		Height: h.Height, Hash: h.Hash, Version: h.Version, PrevBlock: h.PrevBlock,
		MerkleRoot: h.MerkleRoot, Timestamp: h.Timestamp, Bits: h.Bits, Nonce: h.Nonce,
		Difficulty: h.Difficulty,
	})
}

func headerFromRow(r store.HeaderRow) BlockHeader {
	return BlockHeader{
		Height: r.Height, Hash: r.Hash, Version: r.Version, PrevBlock: r.PrevBlock,
		MerkleRoot: r.MerkleRoot, Timestamp: r.Timestamp, Bits: r.Bits, Nonce: r.Nonce,
		Difficulty: r.Difficulty,
	}
}
