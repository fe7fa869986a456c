package spv

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Fantasim/bsvbank/internal/bankerr"
)

// VerifyMerkle folds siblings onto txid following its position in the tree
// and compares the resulting root to expectedRoot. txid, expectedRoot, and
// each sibling are hex-encoded, big-endian (display order) hashes.
func VerifyMerkle(txid string, siblings []string, txIndex uint32, expectedRoot string) (bool, error) {
	h, err := decodeReversedHash(txid)
	if err != nil {
		return false, bankerr.InvalidTxid(err.Error())
	}
	root, err := decodeReversedHash(expectedRoot)
	if err != nil {
		return false, bankerr.InvalidTxid("malformed merkle root: " + err.Error())
	}

	index := txIndex
	for _, sibHex := range siblings {
		sib, err := decodeReversedHash(sibHex)
		if err != nil {
			return false, bankerr.InvalidTxid("malformed sibling hash: " + err.Error())
		}
		if index%2 == 0 {
			h = doubleSHA256Concat(h, sib)
		} else {
			h = doubleSHA256Concat(sib, h)
		}
		index >>= 1
	}

	return h == root, nil
}

// VerifyHeaderHash re-serializes the 80-byte header and checks that its
// double-SHA-256 (reversed to display order) matches header.Hash.
func VerifyHeaderHash(header BlockHeader) (bool, error) {
	computed, err := headerHash(header)
	if err != nil {
		return false, err
	}
	return computed == header.Hash, nil
}

// ValidateChain walks a contiguous slice of headers, ordered by ascending
// height, checking height continuity, hash linkage, header-hash integrity,
// strictly monotonic timestamps, and proof-of-work target compliance.
func ValidateChain(headers []BlockHeader) error {
	for i := 1; i < len(headers); i++ {
		prev, curr := headers[i-1], headers[i]

		if curr.Height != prev.Height+1 {
			return bankerr.ChainDiscontinuity(curr.Height, "height is not contiguous with predecessor")
		}
		if curr.PrevBlock != prev.Hash {
			return bankerr.ChainDiscontinuity(curr.Height, "prev_block does not match predecessor hash")
		}
		ok, err := VerifyHeaderHash(curr)
		if err != nil {
			return err
		}
		if !ok {
			return bankerr.HeaderHashMismatch(curr.Height)
		}
		if curr.Timestamp <= prev.Timestamp {
			return bankerr.ChainDiscontinuity(curr.Height, "timestamp does not strictly increase")
		}
		if err := checkProofOfWork(curr); err != nil {
			return err
		}
	}

	// A single-header slice still needs its own hash to be valid.
	if len(headers) == 1 {
		ok, err := VerifyHeaderHash(headers[0])
		if err != nil {
			return err
		}
		if !ok {
			return bankerr.HeaderHashMismatch(headers[0].Height)
		}
		if err := checkProofOfWork(headers[0]); err != nil {
			return err
		}
	}

	return nil
}

// checkProofOfWork verifies that the header's hash, interpreted as a
// big-endian unsigned integer, does not exceed the target implied by bits.
func checkProofOfWork(header BlockHeader) error {
	hashBytes, err := decodeReversedHash(header.Hash)
	if err != nil {
		return bankerr.HeaderHashMismatch(header.Height)
	}

	// decodeReversedHash gives us the hash in internal (little-endian, as
	// stored by chainhash) order; reverse again to get a big-endian integer
	// matching target_from_bits' big-endian convention.
	be := make([]byte, len(hashBytes))
	for i := range hashBytes {
		be[i] = hashBytes[len(hashBytes)-1-i]
	}
	hashInt := new(big.Int).SetBytes(be)

	target := blockchain.CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		return bankerr.ChainDiscontinuity(header.Height, "bits field decodes to a non-positive target")
	}
	if hashInt.Cmp(target) > 0 {
		return bankerr.ChainDiscontinuity(header.Height, "header hash exceeds proof-of-work target")
	}
	return nil
}

// headerHash computes the double-SHA-256 of the canonical 80-byte header
// serialization, returned as a reversed (display-order) hex string.
func headerHash(header BlockHeader) (string, error) {
	prevBlock, err := decodeReversedHash(header.PrevBlock)
	if err != nil {
		return "", bankerr.InvalidTxid("malformed prev_block: " + err.Error())
	}
	merkleRoot, err := decodeReversedHash(header.MerkleRoot)
	if err != nil {
		return "", bankerr.InvalidTxid("malformed merkle_root: " + err.Error())
	}

	buf := make([]byte, 0, 80)
	var tmp4 [4]byte

	binary.LittleEndian.PutUint32(tmp4[:], uint32(header.Version))
	buf = append(buf, tmp4[:]...)
	buf = append(buf, prevBlock[:]...)
	buf = append(buf, merkleRoot[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], header.Timestamp)
	buf = append(buf, tmp4[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], header.Bits)
	buf = append(buf, tmp4[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], header.Nonce)
	buf = append(buf, tmp4[:]...)

	sum := chainhash.DoubleHashB(buf)
	return reverseHex(sum), nil
}

// decodeReversedHash decodes a display-order (big-endian) hex hash into its
// internal little-endian byte representation, matching chainhash.Hash.
func decodeReversedHash(hexStr string) (chainhash.Hash, error) {
	var h chainhash.Hash
	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return h, err
	}
	if len(raw) != chainhash.HashSize {
		return h, errInvalidHashLength
	}
	for i := 0; i < chainhash.HashSize; i++ {
		h[i] = raw[chainhash.HashSize-1-i]
	}
	return h, nil
}

func doubleSHA256Concat(a, b chainhash.Hash) chainhash.Hash {
	buf := make([]byte, 0, 2*chainhash.HashSize)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return chainhash.DoubleHashH(buf)
}

func reverseHex(b []byte) string {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[len(b)-1-i]
	}
	return hex.EncodeToString(out)
}

var errInvalidHashLength = bankerr.InvalidTxid("hash must be 32 bytes")
