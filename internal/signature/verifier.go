// Package signature recovers certificate signers from 65-byte r‖s‖v
// secp256k1 signatures.
package signature

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"

	"tokenhold/pkg/domain"
)

// SignatureLength is the size of an r‖s‖v signature.
const SignatureLength = 65

// compactHeaderBase is the header offset used by ecdsa.RecoverCompact for
// uncompressed keys.
const compactHeaderBase = 27

// Verifier is stateless and safe for concurrent use.
type Verifier struct {
	strict bool
}

type Option func(*Verifier)

// WithStrictRecoveryID rejects the legacy v=29 alias instead of folding it
// into recovery id 1.
func WithStrictRecoveryID(strict bool) Option {
	return func(v *Verifier) {
		v.strict = strict
	}
}

func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NormalizeRecoveryID maps the v byte of a signature to a raw recovery id.
// Accepted encodings: 0/1 (raw), 27/28 (legacy), and 29 which folds into
// recovery id 1 unless strict is set.
func NormalizeRecoveryID(v byte, strict bool) (byte, bool) {
	switch v {
	case 0, 1:
		return v, true
	case 27, 28:
		return v - 27, true
	case 29:
		if strict {
			return 0, false
		}
		return 1, true
	default:
		return 0, false
	}
}

// Recover returns the address that produced sig over digest. Any malformed
// or unrecoverable signature yields the zero address and false.
func (v *Verifier) Recover(digest [32]byte, sig []byte) (domain.Address, bool) {
	if len(sig) != SignatureLength {
		return domain.ZeroAddress, false
	}
	recID, ok := NormalizeRecoveryID(sig[64], v.strict)
	if !ok {
		return domain.ZeroAddress, false
	}

	compact := make([]byte, SignatureLength)
	compact[0] = compactHeaderBase + recID
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, digest[:])
	if err != nil {
		return domain.ZeroAddress, false
	}
	return AddressFromPublicKey(pub), true
}

// Sign produces an r‖s‖v signature with v in {27, 28}.
func Sign(key *secp256k1.PrivateKey, digest [32]byte) []byte {
	compact := ecdsa.SignCompact(key, digest[:], false)
	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig
}

// AddressFromPublicKey derives the 20-byte account address: the last 20
// bytes of keccak256 over the uncompressed X‖Y coordinates.
func AddressFromPublicKey(pub *secp256k1.PublicKey) domain.Address {
	hash := Keccak256(pub.SerializeUncompressed()[1:])
	var addr domain.Address
	copy(addr[:], hash[12:])
	return addr
}

// Keccak256 hashes the concatenation of parts.
func Keccak256(parts ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	h.Sum(out[:0])
	return out
}
