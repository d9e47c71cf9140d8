package domain

import (
	"encoding/hex"
	"strings"

	dErrors "tokenhold/pkg/domain-errors"
)

// Address identifies an account or a token on the host ledger. The zero
// value is the null identity (no sender for pre-holds, no notary, ...).
type Address [20]byte

// ZeroAddress is the null identity.
var ZeroAddress Address

// ParseAddress accepts a 0x-prefixed (or bare) 40 character hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decodeFixedHex(s, a[:]); err != nil {
		return Address{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid address")
	}
	return a, nil
}

// MustParseAddress panics on malformed input. Intended for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) IsZero() bool { return a == ZeroAddress }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Bytes32 is a fixed 32-byte word: digests, salts, secrets and secret hashes.
type Bytes32 [32]byte

// ParseBytes32 accepts a 0x-prefixed (or bare) 64 character hex string.
func ParseBytes32(s string) (Bytes32, error) {
	var b Bytes32
	if err := decodeFixedHex(s, b[:]); err != nil {
		return Bytes32{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid bytes32")
	}
	return b, nil
}

func (b Bytes32) IsZero() bool { return b == Bytes32{} }

func (b Bytes32) String() string { return "0x" + hex.EncodeToString(b[:]) }

func (b Bytes32) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *Bytes32) UnmarshalText(raw []byte) error {
	parsed, err := ParseBytes32(string(raw))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Partition names a sub-balance of a holder within one token.
type Partition Bytes32

// PartitionFromLabel left-aligns an ASCII label ("issued", "locked") into a
// partition. Labels longer than 32 bytes are rejected.
func PartitionFromLabel(label string) (Partition, error) {
	var p Partition
	if label == "" || len(label) > len(p) {
		return Partition{}, dErrors.New(dErrors.CodeInvalidInput, "partition label must be 1-32 bytes")
	}
	copy(p[:], label)
	return p, nil
}

// ParsePartition accepts either a 32-byte hex word or a short label.
func ParsePartition(s string) (Partition, error) {
	if strings.HasPrefix(s, "0x") && len(s) == 66 {
		b, err := ParseBytes32(s)
		if err != nil {
			return Partition{}, err
		}
		return Partition(b), nil
	}
	return PartitionFromLabel(s)
}

func (p Partition) IsZero() bool { return Bytes32(p).IsZero() }

func (p Partition) String() string { return Bytes32(p).String() }

func (p Partition) MarshalText() ([]byte, error) { return Bytes32(p).MarshalText() }

func (p *Partition) UnmarshalText(raw []byte) error {
	parsed, err := ParsePartition(string(raw))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// HoldID is the caller-chosen identifier of a hold, unique per token.
type HoldID Bytes32

func ParseHoldID(s string) (HoldID, error) {
	b, err := ParseBytes32(s)
	if err != nil {
		return HoldID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid hold id")
	}
	return HoldID(b), nil
}

func (h HoldID) IsZero() bool { return Bytes32(h).IsZero() }

func (h HoldID) String() string { return Bytes32(h).String() }

func (h HoldID) MarshalText() ([]byte, error) { return Bytes32(h).MarshalText() }

func (h *HoldID) UnmarshalText(raw []byte) error {
	parsed, err := ParseHoldID(string(raw))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func decodeFixedHex(s string, dst []byte) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*len(dst) {
		return errInvalidLength
	}
	_, err := hex.Decode(dst, []byte(s))
	return err
}

var errInvalidLength = dErrors.New(dErrors.CodeInvalidInput, "unexpected hex length")
