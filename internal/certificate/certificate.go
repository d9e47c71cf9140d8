// Package certificate validates off-chain signed, single-use authorisations
// for one specific call on one token, and keeps the per-signer replay state
// (nonce counters and used salts).
package certificate

import (
	"encoding/binary"
	"math"
	"time"

	"tokenhold/internal/signature"
	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
)

// Length is the encoded size in both modes: two words and a signature.
const Length = 32 + 32 + signature.SignatureLength

// Certificate is the decoded form. In nonce mode Replay holds the nonce as a
// big-endian word; in salt mode it holds the salt.
type Certificate struct {
	Expiration uint64
	Replay     [32]byte
	Signature  [signature.SignatureLength]byte
}

// Decode parses raw according to mode. Nonce mode is
// expiration‖nonce‖sig; salt mode is salt‖expiration‖sig.
func Decode(mode tokensetup.CertificateMode, raw []byte) (Certificate, error) {
	var c Certificate
	if len(raw) != Length {
		return c, dErrors.New(dErrors.CodeInvalidInput, "certificate must be 129 bytes")
	}
	var expWord [32]byte
	switch mode {
	case tokensetup.CertificateModeNonce:
		copy(expWord[:], raw[:32])
		copy(c.Replay[:], raw[32:64])
	case tokensetup.CertificateModeSalt:
		copy(c.Replay[:], raw[:32])
		copy(expWord[:], raw[32:64])
	default:
		return c, dErrors.New(dErrors.CodeInvalidInput, "certificates are not used in this mode")
	}
	copy(c.Signature[:], raw[64:])
	c.Expiration = wordToUint(expWord)
	return c, nil
}

// Encode is the inverse of Decode.
func (c Certificate) Encode(mode tokensetup.CertificateMode) []byte {
	exp := UintWord(c.Expiration)
	out := make([]byte, 0, Length)
	if mode == tokensetup.CertificateModeSalt {
		out = append(out, c.Replay[:]...)
		out = append(out, exp[:]...)
	} else {
		out = append(out, exp[:]...)
		out = append(out, c.Replay[:]...)
	}
	return append(out, c.Signature[:]...)
}

// Expired reports whether now is past the expiration second.
func (c Certificate) Expired(now time.Time) bool {
	sec := now.Unix()
	return sec > 0 && uint64(sec) > c.Expiration
}

// Nonce returns the nonce word as a counter value; words that do not fit in
// 64 bits report false.
func (c Certificate) Nonce() (uint64, bool) {
	for _, b := range c.Replay[:24] {
		if b != 0 {
			return 0, false
		}
	}
	return binary.BigEndian.Uint64(c.Replay[24:]), true
}

// wordToUint saturates at MaxUint64.
func wordToUint(w [32]byte) uint64 {
	for _, b := range w[:24] {
		if b != 0 {
			return math.MaxUint64
		}
	}
	return binary.BigEndian.Uint64(w[24:])
}

// NonceWord encodes a counter value for the certificate.
func NonceWord(n uint64) [32]byte {
	return UintWord(n)
}

// DomainSeparator binds certificates to one chain, deployment name and token
// so a certificate for one token is useless on any other.
func DomainSeparator(chainID uint64, name string, token domain.Address) [32]byte {
	typeHash := signature.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	nameHash := signature.Keccak256([]byte(name))
	versionHash := signature.Keccak256([]byte("1"))
	chain := UintWord(chainID)
	tokenWord := AddressWord(token)
	return signature.Keccak256(typeHash[:], nameHash[:], versionHash[:], chain[:], tokenWord[:])
}

// Digest is the value the certificate signer signs.
func Digest(separator [32]byte, caller, token domain.Address, payload []byte, expiration uint64, replay [32]byte) [32]byte {
	exp := UintWord(expiration)
	inner := signature.Keccak256(caller[:], token[:], payload, exp[:], replay[:])
	return signature.Keccak256(separator[:], inner[:])
}
