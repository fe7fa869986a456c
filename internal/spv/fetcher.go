package spv

import "context"

// Fetcher retrieves Merkle proofs and headers from the external indexer.
// Implemented by internal/indexer; kept as an interface here so spv has no
// compile-time dependency on the HTTP transport.
type Fetcher interface {
	FetchProof(ctx context.Context, txid string) (*MerkleProof, error)
	FetchHeader(ctx context.Context, heightOrHash string) (*BlockHeader, error)
	ChainTip(ctx context.Context) (*BlockHeader, error)
}
