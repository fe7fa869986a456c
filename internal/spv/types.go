// Package spv implements simplified payment verification: Merkle-branch
// validation, header-chain validation, and reorg detection against a
// block-header chain fetched from an external indexer.
package spv

// BlockHeader is the 80-byte Bitcoin-style block header plus the metadata
// the verifier needs to place it in the chain.
type BlockHeader struct {
	Height     int32
	Hash       string
	Version    int32
	PrevBlock  string
	MerkleRoot string
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
	Difficulty float64
}

// MerkleProof is the sibling path connecting a transaction to a block's
// Merkle root.
type MerkleProof struct {
	Txid        string
	MerkleRoot  string
	Siblings    []string
	TxIndex     uint32
	BlockHash   *string
	BlockHeight *int32
}

// VerificationResult is the outcome of verifying a transaction's inclusion
// in the header chain.
type VerificationResult struct {
	Verified      bool
	Confirmations uint32
	BlockHeight   *int32
	Sufficient    bool
}

// ReorgReport describes a detected chain reorganization.
type ReorgReport struct {
	Reorged        bool
	CommonAncestor int32
	Depth          int32
	AffectedFrom   int32
	AffectedTo     int32
}

// ChainInfo mirrors the indexer's /chain/info response.
type ChainInfo struct {
	Blocks        int32
	BestBlockHash string
	Difficulty    float64
	Chain         string
}
