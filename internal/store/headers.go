package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// HeaderRow is the durable representation of a validated block header.
type HeaderRow struct {
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

// ProofRow is a cached Merkle proof for a transaction's inclusion.
type ProofRow struct {
	Txid        string
	BlockHash   *string
	BlockHeight *int32
	MerkleRoot  string
	Siblings    []string
	TxIndex     uint32
	VerifiedAt  time.Time
}

// InsertHeader stores a validated header. Inserting at a height that already
// has a row replaces that row's fields in place.
func (s *Store) InsertHeader(h HeaderRow) error {
	_, err := s.conn.Exec(
		`INSERT INTO block_headers (height, hash, version, prev_block, merkle_root, timestamp, bits, nonce, difficulty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(height) DO UPDATE SET
			hash = excluded.hash, version = excluded.version, prev_block = excluded.prev_block,
			merkle_root = excluded.merkle_root, timestamp = excluded.timestamp,
			bits = excluded.bits, nonce = excluded.nonce, difficulty = excluded.difficulty`,
		h.Height, h.Hash, h.Version, h.PrevBlock, h.MerkleRoot, h.Timestamp, h.Bits, h.Nonce, h.Difficulty,
	)
	if err != nil {
		return fmt.Errorf("insert header at height %d: %w", h.Height, err)
	}
	return nil
}

// GetHeaderByHeight retrieves a header by height.
func (s *Store) GetHeaderByHeight(height int32) (*HeaderRow, error) {
	var h HeaderRow
	err := s.conn.QueryRow(
		`SELECT height, hash, version, prev_block, merkle_root, timestamp, bits, nonce, difficulty
		 FROM block_headers WHERE height = ?`, height,
	).Scan(&h.Height, &h.Hash, &h.Version, &h.PrevBlock, &h.MerkleRoot, &h.Timestamp, &h.Bits, &h.Nonce, &h.Difficulty)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get header at height %d: %w", height, err)
	}
	return &h, nil
}

// GetTipHeader returns the highest-height stored header, or nil if none exist.
func (s *Store) GetTipHeader() (*HeaderRow, error) {
	var h HeaderRow
	err := s.conn.QueryRow(
		`SELECT height, hash, version, prev_block, merkle_root, timestamp, bits, nonce, difficulty
		 FROM block_headers ORDER BY height DESC LIMIT 1`,
	).Scan(&h.Height, &h.Hash, &h.Version, &h.PrevBlock, &h.MerkleRoot, &h.Timestamp, &h.Bits, &h.Nonce, &h.Difficulty)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tip header: %w", err)
	}
	return &h, nil
}

// DeleteHeadersFrom removes all headers at or above the given height, used to
// unwind a reorged segment of the chain before reinserting the new branch.
func (s *Store) DeleteHeadersFrom(height int32) error {
	_, err := s.conn.Exec(`DELETE FROM block_headers WHERE height >= ?`, height)
	if err != nil {
		return fmt.Errorf("delete headers from height %d: %w", height, err)
	}
	return nil
}

// SaveProof caches a verified Merkle proof.
func (s *Store) SaveProof(p ProofRow) error {
	siblings, err := json.Marshal(p.Siblings)
	if err != nil {
		return fmt.Errorf("marshal siblings for %s: %w", p.Txid, err)
	}

	var blockHash sql.NullString
	if p.BlockHash != nil {
		blockHash = sql.NullString{String: *p.BlockHash, Valid: true}
	}
	var blockHeight sql.NullInt64
	if p.BlockHeight != nil {
		blockHeight = sql.NullInt64{Int64: int64(*p.BlockHeight), Valid: true}
	}

	_, err = s.conn.Exec(
		`INSERT INTO merkle_proofs (txid, block_hash, block_height, merkle_root, siblings, tx_index, verified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(txid) DO UPDATE SET
			block_hash = excluded.block_hash, block_height = excluded.block_height,
			merkle_root = excluded.merkle_root, siblings = excluded.siblings,
			tx_index = excluded.tx_index, verified_at = excluded.verified_at`,
		p.Txid, blockHash, blockHeight, p.MerkleRoot, string(siblings), p.TxIndex,
		p.VerifiedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save proof for %s: %w", p.Txid, err)
	}
	return nil
}

// GetProof retrieves a cached Merkle proof by txid.
func (s *Store) GetProof(txid string) (*ProofRow, error) {
	var p ProofRow
	var blockHash sql.NullString
	var blockHeight sql.NullInt64
	var siblingsJSON, verifiedAt string

	err := s.conn.QueryRow(
		`SELECT txid, block_hash, block_height, merkle_root, siblings, tx_index, verified_at
		 FROM merkle_proofs WHERE txid = ?`, txid,
	).Scan(&p.Txid, &blockHash, &blockHeight, &p.MerkleRoot, &siblingsJSON, &p.TxIndex, &verifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proof for %s: %w", txid, err)
	}

	if err := json.Unmarshal([]byte(siblingsJSON), &p.Siblings); err != nil {
		return nil, fmt.Errorf("unmarshal siblings for %s: %w", txid, err)
	}
	if blockHash.Valid {
		p.BlockHash = &blockHash.String
	}
	if blockHeight.Valid {
		h := int32(blockHeight.Int64)
		p.BlockHeight = &h
	}
	p.VerifiedAt, _ = time.Parse(time.RFC3339Nano, verifiedAt)

	return &p, nil
}
