package indexer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Fantasim/bsvbank/internal/spv"
)

// proofResponse mirrors the indexer's /tx/{txid}/proof response.
type proofResponse struct {
	MerkleRoot string   `json:"merkleRoot"`
	Siblings   []string `json:"siblings"`
	Index      uint32   `json:"index"`
}

// headerResponse mirrors the indexer's /block/{h-or-hash}/header response.
type headerResponse struct {
	Height            int32   `json:"height"`
	Hash              string  `json:"hash"`
	Version           int32   `json:"version"`
	PreviousBlockHash *string `json:"previousblockhash,omitempty"`
	MerkleRoot        string  `json:"merkleroot"`
	Time              uint32  `json:"time"`
	Bits              string  `json:"bits"`
	Nonce             uint32  `json:"nonce"`
	Difficulty        float64 `json:"difficulty"`
}

// FetchProof implements spv.Fetcher by combining the proof and owning-tx
// lookups: the proof endpoint gives the Merkle path, the tx endpoint gives
// the containing block so the proof can be fully resolved.
func (c *Client) FetchProof(ctx context.Context, txid string) (*spv.MerkleProof, error) {
	var proof proofResponse
	if err := c.do(ctx, http.MethodGet, "/tx/"+txid+"/proof", nil, &proof); err != nil {
		return nil, err
	}

	tx, err := c.FetchTx(ctx, txid)
	if err != nil {
		return nil, err
	}

	return &spv.MerkleProof{
		Txid:        txid,
		MerkleRoot:  proof.MerkleRoot,
		Siblings:    proof.Siblings,
		TxIndex:     proof.Index,
		BlockHash:   tx.BlockHash,
		BlockHeight: tx.BlockHeight,
	}, nil
}

// FetchHeader implements spv.Fetcher, resolving a header by height or hash.
func (c *Client) FetchHeader(ctx context.Context, heightOrHash string) (*spv.BlockHeader, error) {
	var h headerResponse
	if err := c.do(ctx, http.MethodGet, "/block/"+heightOrHash+"/header", nil, &h); err != nil {
		return nil, err
	}
	return toSPVHeader(h)
}

// ChainTip implements spv.Fetcher by resolving /chain/info's best block hash
// into a full header.
func (c *Client) ChainTip(ctx context.Context) (*spv.BlockHeader, error) {
	info, err := c.FetchChainInfo(ctx)
	if err != nil {
		return nil, err
	}
	return c.FetchHeader(ctx, info.BestBlockHash)
}

func toSPVHeader(h headerResponse) (*spv.BlockHeader, error) {
	bits, err := parseHexUint32(h.Bits)
	if err != nil {
		return nil, fmt.Errorf("parse bits %q: %w", h.Bits, err)
	}

	prevBlock := ""
	if h.PreviousBlockHash != nil {
		prevBlock = *h.PreviousBlockHash
	}

	return &spv.BlockHeader{
		Height:     h.Height,
		Hash:       h.Hash,
		Version:    h.Version,
		PrevBlock:  prevBlock,
		MerkleRoot: h.MerkleRoot,
		Timestamp:  h.Time,
		Bits:       bits,
		Nonce:      h.Nonce,
		Difficulty: h.Difficulty,
	}, nil
}

func parseHexUint32(s string) (uint32, error) {
	var v uint32
	_, err := fmt.Sscanf(s, "%x", &v)
	return v, err
}
