package txbuilder

import "testing"

func TestEstimateFee_MonotonicInOutputs(t *testing.T) {
	a := EstimateFee(2, 2, 1)
	b := EstimateFee(2, 3, 1)
	if !(b > a) {
		t.Errorf("EstimateFee(2,3,1)=%d should be greater than EstimateFee(2,2,1)=%d", b, a)
	}
}

func TestEstimateFee_MonotonicInInputs(t *testing.T) {
	a := EstimateFee(2, 2, 1)
	b := EstimateFee(3, 2, 1)
	if !(b > a) {
		t.Errorf("EstimateFee(3,2,1)=%d should be greater than EstimateFee(2,2,1)=%d", b, a)
	}
}

func TestEstimateFee_MonotonicInRate(t *testing.T) {
	a := EstimateFee(2, 2, 1)
	b := EstimateFee(2, 2, 2)
	if !(b > a) {
		t.Errorf("EstimateFee(2,2,2)=%d should be greater than EstimateFee(2,2,1)=%d", b, a)
	}
}

func TestEstimateFeeForInputs_MixedKinds(t *testing.T) {
	fee := EstimateFeeForInputs([]InputKind{InputP2PKH, InputP2SHMultisig, InputCLTVP2PKH}, []OutputKind{OutputP2PKH, OutputP2SH}, 10)
	if fee <= 0 {
		t.Errorf("expected positive fee, got %d", fee)
	}
}

func TestEstimateFeeForInputs_P2SHOutputCheaperThanP2PKH(t *testing.T) {
	withP2PKH := EstimateFeeForInputs([]InputKind{InputP2PKH}, []OutputKind{OutputP2PKH}, 1)
	withP2SH := EstimateFeeForInputs([]InputKind{InputP2PKH}, []OutputKind{OutputP2SH}, 1)
	if !(withP2SH < withP2PKH) {
		t.Errorf("P2SH output fee %d should be less than P2PKH output fee %d", withP2SH, withP2PKH)
	}
}
