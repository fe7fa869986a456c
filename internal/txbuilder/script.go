package txbuilder

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"

	"github.com/Fantasim/bsvbank/internal/bankerr"
	"github.com/Fantasim/bsvbank/internal/config"
)

// BuildP2PKHScript builds a standard Pay-to-PubKey-Hash locking script:
// OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
func BuildP2PKHScript(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, bankerr.InvalidAddress("public key hash must be 20 bytes")
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// BuildP2SHScript builds a standard Pay-to-Script-Hash locking script:
// OP_HASH160 <20-byte hash> OP_EQUAL.
func BuildP2SHScript(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 20 {
		return nil, bankerr.InvalidAddress("script hash must be 20 bytes")
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(scriptHash).
		AddOp(txscript.OP_EQUAL).
		Script()
}

// Build2of2MultisigRedeemScript builds the inner redeem script for a 2-of-2
// multisig: OP_2 <pubA> <pubB> OP_2 OP_CHECKMULTISIG. Keys are ordered as given.
func Build2of2MultisigRedeemScript(pubKeyA, pubKeyB []byte) ([]byte, error) {
	if _, err := btcec.ParsePubKey(pubKeyA); err != nil {
		return nil, bankerr.InvalidPublicKey("party A: " + err.Error())
	}
	if _, err := btcec.ParsePubKey(pubKeyB); err != nil {
		return nil, bankerr.InvalidPublicKey("party B: " + err.Error())
	}

	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_2).
		AddData(pubKeyA).
		AddData(pubKeyB).
		AddOp(txscript.OP_2).
		AddOp(txscript.OP_CHECKMULTISIG).
		Script()
}

// Build2of2MultisigScript wraps the 2-of-2 redeem script as a P2SH locking
// script and returns both the locking script and the redeem script needed to
// spend it.
func Build2of2MultisigScript(pubKeyA, pubKeyB []byte) (lockScript, redeemScript []byte, err error) {
	redeemScript, err = Build2of2MultisigRedeemScript(pubKeyA, pubKeyB)
	if err != nil {
		return nil, nil, err
	}
	scriptHash := btcutil.Hash160(redeemScript)
	lockScript, err = BuildP2SHScript(scriptHash)
	if err != nil {
		return nil, nil, err
	}
	return lockScript, redeemScript, nil
}

// BuildOpReturnScript builds a provably-unspendable data-carrier output using
// the bare OP_RETURN template: OP_RETURN <data>.
func BuildOpReturnScript(data []byte) ([]byte, error) {
	if len(data) > config.MaxOpReturnData {
		return nil, bankerr.SizeExceeded(len(data), config.MaxOpReturnData)
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(data).
		Script()
}

// BuildCLTVP2PKHRedeemScript builds a timeout-locked redeem script:
// <lockTime> OP_CHECKLOCKTIMEVERIFY OP_DROP OP_DUP OP_HASH160 <hash> OP_EQUALVERIFY OP_CHECKSIG.
// Used for channel timeout-sweep outputs: unspendable until lockTime (an
// absolute block height or unix timestamp per BIP-65 semantics).
func BuildCLTVP2PKHRedeemScript(lockTime int64, pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, bankerr.InvalidAddress("public key hash must be 20 bytes")
	}
	return txscript.NewScriptBuilder().
		AddInt64(lockTime).
		AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).
		AddOp(txscript.OP_DROP).
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// BuildCLTVP2PKHScript wraps a CLTV-gated P2PKH redeem script as a P2SH
// locking script and returns both scripts.
func BuildCLTVP2PKHScript(lockTime int64, pubKeyHash []byte) (lockScript, redeemScript []byte, err error) {
	redeemScript, err = BuildCLTVP2PKHRedeemScript(lockTime, pubKeyHash)
	if err != nil {
		return nil, nil, err
	}
	scriptHash := btcutil.Hash160(redeemScript)
	lockScript, err = BuildP2SHScript(scriptHash)
	if err != nil {
		return nil, nil, err
	}
	return lockScript, redeemScript, nil
}

// ScriptForAddress builds the appropriate locking script (P2PKH or P2SH) for
// a decoded address.
func ScriptForAddress(address string, mainnet bool) ([]byte, error) {
	hash, isP2SH, err := DecodeAddress(address, mainnet)
	if err != nil {
		return nil, err
	}
	if isP2SH {
		return BuildP2SHScript(hash)
	}
	return BuildP2PKHScript(hash)
}
