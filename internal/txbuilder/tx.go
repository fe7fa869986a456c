// Package txbuilder implements the canonical BSV transaction format, script
// synthesis, fee estimation and UTXO selection used to construct funding,
// commitment and settlement transactions for payment channels.
package txbuilder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Fantasim/bsvbank/internal/bankerr"
	"github.com/Fantasim/bsvbank/internal/config"
)

// Input is a single transaction input: a reference to a previous output plus
// the unlocking script and sequence number.
type Input struct {
	PrevTxid  chainhash.Hash
	PrevIndex uint32
	Script    []byte
	Sequence  uint32

	// ValueHint carries the spent output's value for fee/signing purposes. It
	// is never part of the canonical serialization.
	ValueHint int64
}

// Output is a single transaction output: a value in satoshis plus a locking script.
type Output struct {
	Value  int64
	Script []byte
}

// Transaction is the canonical BSV transaction representation.
type Transaction struct {
	Version  uint32
	Inputs   []Input
	Outputs  []Output
	Locktime uint32
}

const defaultSequence = 0xffffffff

// Serialize encodes t using the canonical wire format: version (LE4),
// varint-prefixed inputs (reversed prevout txid, LE4 index, varint script
// length, script, LE4 sequence), varint-prefixed outputs (LE8 value, varint
// script length, script), and locktime (LE4).
func (t *Transaction) Serialize() []byte {
	var buf bytes.Buffer

	var v [4]byte
	binary.LittleEndian.PutUint32(v[:], t.Version)
	buf.Write(v[:])

	writeVarInt(&buf, uint64(len(t.Inputs)))
	for _, in := range t.Inputs {
		reversed := reverseBytes(in.PrevTxid[:])
		buf.Write(reversed)

		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], in.PrevIndex)
		buf.Write(idx[:])

		writeVarInt(&buf, uint64(len(in.Script)))
		buf.Write(in.Script)

		var seq [4]byte
		binary.LittleEndian.PutUint32(seq[:], in.Sequence)
		buf.Write(seq[:])
	}

	writeVarInt(&buf, uint64(len(t.Outputs)))
	for _, out := range t.Outputs {
		var val [8]byte
		binary.LittleEndian.PutUint64(val[:], uint64(out.Value))
		buf.Write(val[:])

		writeVarInt(&buf, uint64(len(out.Script)))
		buf.Write(out.Script)
	}

	var lt [4]byte
	binary.LittleEndian.PutUint32(lt[:], t.Locktime)
	buf.Write(lt[:])

	return buf.Bytes()
}

// Deserialize parses the canonical wire format produced by Serialize.
func Deserialize(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	t := &Transaction{}

	var v [4]byte
	if _, err := io.ReadFull(r, v[:]); err != nil {
		return nil, bankerr.InvalidTxid("truncated version field")
	}
	t.Version = binary.LittleEndian.Uint32(v[:])

	numIn, err := readVarInt(r)
	if err != nil {
		return nil, bankerr.InvalidTxid("truncated input count: " + err.Error())
	}

	t.Inputs = make([]Input, 0, numIn)
	for i := uint64(0); i < numIn; i++ {
		var prevRev [32]byte
		if _, err := io.ReadFull(r, prevRev[:]); err != nil {
			return nil, bankerr.InvalidTxid("truncated prevout hash")
		}
		var prevTxid chainhash.Hash
		copy(prevTxid[:], reverseBytes(prevRev[:]))

		var idx [4]byte
		if _, err := io.ReadFull(r, idx[:]); err != nil {
			return nil, bankerr.InvalidTxid("truncated prevout index")
		}

		scriptLen, err := readVarInt(r)
		if err != nil {
			return nil, bankerr.InvalidTxid("truncated script length: " + err.Error())
		}
		script := make([]byte, scriptLen)
		if scriptLen > 0 {
			if _, err := io.ReadFull(r, script); err != nil {
				return nil, bankerr.InvalidTxid("truncated script")
			}
		}

		var seq [4]byte
		if _, err := io.ReadFull(r, seq[:]); err != nil {
			return nil, bankerr.InvalidTxid("truncated sequence")
		}

		t.Inputs = append(t.Inputs, Input{
			PrevTxid:  prevTxid,
			PrevIndex: binary.LittleEndian.Uint32(idx[:]),
			Script:    script,
			Sequence:  binary.LittleEndian.Uint32(seq[:]),
		})
	}

	numOut, err := readVarInt(r)
	if err != nil {
		return nil, bankerr.InvalidTxid("truncated output count: " + err.Error())
	}

	t.Outputs = make([]Output, 0, numOut)
	for i := uint64(0); i < numOut; i++ {
		var val [8]byte
		if _, err := io.ReadFull(r, val[:]); err != nil {
			return nil, bankerr.InvalidTxid("truncated output value")
		}

		scriptLen, err := readVarInt(r)
		if err != nil {
			return nil, bankerr.InvalidTxid("truncated output script length: " + err.Error())
		}
		script := make([]byte, scriptLen)
		if scriptLen > 0 {
			if _, err := io.ReadFull(r, script); err != nil {
				return nil, bankerr.InvalidTxid("truncated output script")
			}
		}

		t.Outputs = append(t.Outputs, Output{
			Value:  int64(binary.LittleEndian.Uint64(val[:])),
			Script: script,
		})
	}

	var lt [4]byte
	if _, err := io.ReadFull(r, lt[:]); err != nil {
		return nil, bankerr.InvalidTxid("truncated locktime")
	}
	t.Locktime = binary.LittleEndian.Uint32(lt[:])

	if len(t.Serialize()) > config.MaxTxSizeBytes {
		return nil, bankerr.SizeExceeded(len(data), config.MaxTxSizeBytes)
	}

	return t, nil
}

// TxID computes the canonical transaction id: the double-SHA-256 of the
// serialized transaction, displayed (and stored) byte-reversed.
func (t *Transaction) TxID() chainhash.Hash {
	return chainhash.DoubleHashH(t.Serialize())
}

// TxIDString returns the TxID in the conventional big-endian hex display order.
func (t *Transaction) TxIDString() string {
	h := t.TxID()
	return h.String()
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

func writeVarInt(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	default:
		buf.WriteByte(0xff)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], n)
		buf.Write(b[:])
	}
}

func readVarInt(r *bytes.Reader) (uint64, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("read varint prefix: %w", err)
	}
	switch first {
	case 0xfd:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read varint u16: %w", err)
		}
		return uint64(binary.LittleEndian.Uint16(b[:])), nil
	case 0xfe:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read varint u32: %w", err)
		}
		return uint64(binary.LittleEndian.Uint32(b[:])), nil
	case 0xff:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("read varint u64: %w", err)
		}
		return binary.LittleEndian.Uint64(b[:]), nil
	default:
		return uint64(first), nil
	}
}

// NewInput creates an input with the default maximum sequence number.
func NewInput(prevTxid chainhash.Hash, prevIndex uint32, script []byte, valueHint int64) Input {
	return Input{
		PrevTxid:  prevTxid,
		PrevIndex: prevIndex,
		Script:    script,
		Sequence:  defaultSequence,
		ValueHint: valueHint,
	}
}
