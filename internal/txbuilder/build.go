package txbuilder

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/Fantasim/bsvbank/internal/bankerr"
	"github.com/Fantasim/bsvbank/internal/config"
)

// BuildP2PKHPayment builds a payment transaction spending the given inputs,
// with one output paying value to address and, when changeValue > 0, a
// second output returning changeValue to changeAddress.
func BuildP2PKHPayment(inputs []Input, value int64, address string, changeAddress string, changeValue int64, mainnet bool) (*Transaction, error) {
	if value <= 0 {
		return nil, bankerr.AmountOutOfRange("payment value must be positive")
	}
	if value < config.DustThreshold {
		return nil, bankerr.DustOutput(value, config.DustThreshold)
	}

	destScript, err := ScriptForAddress(address, mainnet)
	if err != nil {
		return nil, err
	}

	outputs := []Output{{Value: value, Script: destScript}}

	if changeValue > 0 {
		if changeValue < config.DustThreshold {
			return nil, bankerr.DustOutput(changeValue, config.DustThreshold)
		}
		changeScript, err := ScriptForAddress(changeAddress, mainnet)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Output{Value: changeValue, Script: changeScript})
	}

	return &Transaction{
		Version:  1,
		Inputs:   inputs,
		Outputs:  outputs,
		Locktime: 0,
	}, nil
}

// BuildFunding builds the funding transaction that locks joint funds into a
// 2-of-2 multisig output, opening a payment channel. The multisig output is
// wrapped in P2SH so inputs can be ordinary P2PKH-spendable UTXOs.
func BuildFunding(inputs []Input, pubKeyA, pubKeyB []byte, amount int64, changeAddress string, changeValue int64, mainnet bool) (tx *Transaction, redeemScript []byte, err error) {
	if amount <= 0 {
		return nil, nil, bankerr.AmountOutOfRange("funding amount must be positive")
	}
	if amount < config.DustThreshold {
		return nil, nil, bankerr.DustOutput(amount, config.DustThreshold)
	}

	lockScript, redeemScript, err := Build2of2MultisigScript(pubKeyA, pubKeyB)
	if err != nil {
		return nil, nil, err
	}

	outputs := []Output{{Value: amount, Script: lockScript}}

	if changeValue > 0 {
		if changeValue < config.DustThreshold {
			return nil, nil, bankerr.DustOutput(changeValue, config.DustThreshold)
		}
		changeScript, err := ScriptForAddress(changeAddress, mainnet)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, Output{Value: changeValue, Script: changeScript})
	}

	tx = &Transaction{Version: 1, Inputs: inputs, Outputs: outputs, Locktime: 0}
	return tx, redeemScript, nil
}

// BuildCommitment builds an off-chain commitment transaction spending a
// channel's funding output into the current balance split between the two
// parties. Either party may publish it unilaterally to force-close the
// channel. Output A is gated behind a CLTV timelock, so the counterparty has
// until timelockBlocks to publish a higher-sequence commitment before A can
// be swept; the funding input's sequence number records which commitment in
// the channel's history this transaction represents.
func BuildCommitment(fundingTxid chainhash.Hash, fundingIndex uint32, fundingValue int64, sequence uint32, timelockBlocks uint32, addressA string, balanceA int64, addressB string, balanceB int64, mainnet bool) (*Transaction, error) {
	if balanceA < 0 || balanceB < 0 {
		return nil, bankerr.AmountOutOfRange("balances must be non-negative")
	}

	var outputs []Output
	if balanceA > 0 {
		if balanceA < config.DustThreshold {
			return nil, bankerr.DustOutput(balanceA, config.DustThreshold)
		}
		hashA, isP2SH, err := DecodeAddress(addressA, mainnet)
		if err != nil {
			return nil, err
		}
		if isP2SH {
			return nil, bankerr.InvalidAddress("commitment output A requires a P2PKH address")
		}
		scriptA, _, err := BuildCLTVP2PKHScript(int64(timelockBlocks), hashA)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Output{Value: balanceA, Script: scriptA})
	}
	if balanceB > 0 {
		if balanceB < config.DustThreshold {
			return nil, bankerr.DustOutput(balanceB, config.DustThreshold)
		}
		scriptB, err := ScriptForAddress(addressB, mainnet)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Output{Value: balanceB, Script: scriptB})
	}

	input := NewInput(fundingTxid, fundingIndex, nil, fundingValue)
	input.Sequence = sequence

	return &Transaction{
		Version:  1,
		Inputs:   []Input{input},
		Outputs:  outputs,
		Locktime: 0,
	}, nil
}

// BuildSettlement builds the on-chain settlement transaction that unlocks a
// channel's funding output into final per-party P2PKH outputs, minus the
// settlement fee (the whole fee is subtracted from party B's share). Unlike a commitment, settlement is
// the channel's agreed final state: both outputs are immediately spendable,
// with no dispute window to encode.
func BuildSettlement(fundingTxid chainhash.Hash, fundingIndex uint32, fundingValue int64, addressA string, balanceA int64, addressB string, balanceB int64, feeSats int64, mainnet bool) (*Transaction, error) {
	if feeSats < 0 {
		return nil, bankerr.AmountOutOfRange("settlement fee must be non-negative")
	}
	if feeSats > balanceB {
		return nil, bankerr.InsufficientFunds(balanceB, feeSats)
	}
	balanceB -= feeSats

	if balanceA < 0 || balanceB < 0 {
		return nil, bankerr.AmountOutOfRange("balances must be non-negative")
	}

	var outputs []Output
	if balanceA > 0 {
		if balanceA < config.DustThreshold {
			return nil, bankerr.DustOutput(balanceA, config.DustThreshold)
		}
		scriptA, err := ScriptForAddress(addressA, mainnet)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Output{Value: balanceA, Script: scriptA})
	}
	if balanceB > 0 {
		if balanceB < config.DustThreshold {
			return nil, bankerr.DustOutput(balanceB, config.DustThreshold)
		}
		scriptB, err := ScriptForAddress(addressB, mainnet)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, Output{Value: balanceB, Script: scriptB})
	}

	input := NewInput(fundingTxid, fundingIndex, nil, fundingValue)

	return &Transaction{
		Version:  1,
		Inputs:   []Input{input},
		Outputs:  outputs,
		Locktime: 0,
	}, nil
}

// ValidationReport summarizes the structural validation of a raw transaction.
type ValidationReport struct {
	Valid     bool
	Txid      string
	SizeBytes int
	Reasons   []string
}

// Validate parses and structurally validates a raw transaction's bytes:
// size limits, non-empty inputs/outputs, and non-negative, non-dust, in-range
// output values. It does not evaluate scripts (script execution is out of scope).
func Validate(txBytes []byte) (*ValidationReport, error) {
	if len(txBytes) == 0 {
		return nil, bankerr.InvalidTxid("empty transaction bytes")
	}
	if len(txBytes) > config.MaxTxSizeBytes {
		return nil, bankerr.SizeExceeded(len(txBytes), config.MaxTxSizeBytes)
	}

	t, err := Deserialize(txBytes)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{
		Txid:      t.TxIDString(),
		SizeBytes: len(txBytes),
		Valid:     true,
	}

	if len(t.Inputs) == 0 {
		report.Valid = false
		report.Reasons = append(report.Reasons, "transaction has no inputs")
	}
	if len(t.Outputs) == 0 {
		report.Valid = false
		report.Reasons = append(report.Reasons, "transaction has no outputs")
	}

	for _, out := range t.Outputs {
		if out.Value < 0 {
			report.Valid = false
			report.Reasons = append(report.Reasons, "output has negative value")
			continue
		}
		if out.Value > config.MaxOutputSatoshis {
			report.Valid = false
			report.Reasons = append(report.Reasons, "output value exceeds maximum supply")
		}
		if out.Value > 0 && out.Value < config.DustThreshold && (len(out.Script) == 0 || out.Script[0] != 0x6a) {
			// OP_RETURN-prefixed (data-carrier) outputs are exempt from dust checks.
			report.Valid = false
			report.Reasons = append(report.Reasons, "output below dust threshold")
		}
	}

	return report, nil
}
