package txbuilder

import "github.com/Fantasim/bsvbank/internal/config"

// InputKind identifies the script type of a spent input, for size estimation.
type InputKind int

const (
	InputP2PKH InputKind = iota
	InputP2SHMultisig
	InputCLTVP2PKH
)

func inputSizeBytes(kind InputKind) int {
	switch kind {
	case InputP2SHMultisig:
		return config.P2SHMultisigInputSize
	case InputCLTVP2PKH:
		return config.CLTVP2PKHInputSize
	default:
		return config.P2PKHInputSizeBytes
	}
}

// OutputKind identifies the script type of a produced output, for size
// estimation.
type OutputKind int

const (
	OutputP2PKH OutputKind = iota
	OutputP2SH
)

func outputSizeBytes(kind OutputKind) int {
	switch kind {
	case OutputP2SH:
		return config.P2SHOutputSizeBytes
	default:
		return config.P2PKHOutputSizeBytes
	}
}

// EstimateFeeForInputs estimates the total fee in satoshis for a transaction
// with the given input and output kinds and fee rate (satoshis per byte).
// Fee is strictly increasing in input count, output count and rate.
func EstimateFeeForInputs(inputKinds []InputKind, outputKinds []OutputKind, satsPerByte uint64) int64 {
	size := config.TxOverheadBytes
	for _, k := range inputKinds {
		size += inputSizeBytes(k)
	}
	for _, k := range outputKinds {
		size += outputSizeBytes(k)
	}
	return int64(size) * int64(satsPerByte)
}

// EstimateFee estimates the fee for numInputs P2PKH inputs and numOutputs
// P2PKH outputs at the given rate: the common case of a transaction whose
// inputs and outputs are all P2PKH.
func EstimateFee(numInputs, numOutputs int, satsPerByte uint64) int64 {
	size := config.TxOverheadBytes + numInputs*config.P2PKHInputSizeBytes + numOutputs*config.P2PKHOutputSizeBytes
	return int64(size) * int64(satsPerByte)
}
