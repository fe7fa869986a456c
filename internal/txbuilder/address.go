package txbuilder

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mr-tron/base58"

	"github.com/Fantasim/bsvbank/internal/bankerr"
	"github.com/Fantasim/bsvbank/internal/config"
)

// AddressVersion identifies which version byte an address was encoded with.
type AddressVersion byte

const checksumLen = 4

// EncodeBase58Check encodes a 20-byte payload with a leading version byte and
// a trailing 4-byte double-SHA-256 checksum.
func EncodeBase58Check(version byte, payload []byte) string {
	body := make([]byte, 0, 1+len(payload)+checksumLen)
	body = append(body, version)
	body = append(body, payload...)

	checksum := chainhash.DoubleHashB(body)
	body = append(body, checksum[:checksumLen]...)

	return base58.Encode(body)
}

// DecodeBase58Check decodes a Base58Check string, verifying the checksum.
// Returns the version byte and the payload (without version or checksum).
func DecodeBase58Check(encoded string) (byte, []byte, error) {
	decoded, err := base58.Decode(encoded)
	if err != nil {
		return 0, nil, bankerr.InvalidAddress("not valid base58: " + err.Error())
	}
	if len(decoded) < 1+checksumLen {
		return 0, nil, bankerr.InvalidAddress("too short to contain version and checksum")
	}

	payloadEnd := len(decoded) - checksumLen
	version := decoded[0]
	payload := decoded[1:payloadEnd]
	gotChecksum := decoded[payloadEnd:]

	wantChecksum := chainhash.DoubleHashB(decoded[:payloadEnd])
	for i := 0; i < checksumLen; i++ {
		if gotChecksum[i] != wantChecksum[i] {
			return 0, nil, bankerr.ChecksumMismatch()
		}
	}

	return version, payload, nil
}

// P2PKHVersionByte returns the version byte for P2PKH addresses on the given network.
func P2PKHVersionByte(mainnet bool) byte {
	if mainnet {
		return config.MainnetP2PKHVersion
	}
	return config.TestnetP2PKHVersion
}

// P2SHVersionByte returns the version byte for P2SH addresses on the given network.
func P2SHVersionByte(mainnet bool) byte {
	if mainnet {
		return config.MainnetP2SHVersion
	}
	return config.TestnetP2SHVersion
}

// EncodeP2PKHAddress encodes a 20-byte public key hash as a P2PKH address.
func EncodeP2PKHAddress(pubKeyHash []byte, mainnet bool) (string, error) {
	if len(pubKeyHash) != 20 {
		return "", bankerr.InvalidAddress("public key hash must be 20 bytes")
	}
	return EncodeBase58Check(P2PKHVersionByte(mainnet), pubKeyHash), nil
}

// EncodeP2SHAddress encodes a 20-byte script hash as a P2SH address.
func EncodeP2SHAddress(scriptHash []byte, mainnet bool) (string, error) {
	if len(scriptHash) != 20 {
		return "", bankerr.InvalidAddress("script hash must be 20 bytes")
	}
	return EncodeBase58Check(P2SHVersionByte(mainnet), scriptHash), nil
}

// DecodeAddress decodes a Base58Check address and reports whether it is a
// P2PKH or P2SH address on the given network.
func DecodeAddress(address string, mainnet bool) (hash []byte, isP2SH bool, err error) {
	version, payload, err := DecodeBase58Check(address)
	if err != nil {
		return nil, false, err
	}
	if len(payload) != 20 {
		return nil, false, bankerr.InvalidAddress("decoded payload is not 20 bytes")
	}

	switch version {
	case P2PKHVersionByte(mainnet):
		return payload, false, nil
	case P2SHVersionByte(mainnet):
		return payload, true, nil
	default:
		return nil, false, bankerr.InvalidAddress("version byte does not match expected network")
	}
}
