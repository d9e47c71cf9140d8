package domain

import (
	"encoding/json"
	"math/big"

	dErrors "tokenhold/pkg/domain-errors"
)

// maxAmount is 2^256-1, the largest quantity the host ledger can represent.
var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Amount is an immutable unsigned 256-bit token quantity. The zero value is 0.
type Amount struct {
	v *big.Int
}

// ZeroAmount is 0.
var ZeroAmount = Amount{}

// NewAmount builds an amount from a uint64.
func NewAmount(u uint64) Amount {
	if u == 0 {
		return Amount{}
	}
	return Amount{v: new(big.Int).SetUint64(u)}
}

// AmountFromBig copies b. Negative or oversized values are rejected.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Sign() < 0 || b.Cmp(maxAmount) > 0 {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "amount out of range")
	}
	return Amount{v: new(big.Int).Set(b)}, nil
}

// ParseAmount parses a base-10 string.
func ParseAmount(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, dErrors.New(dErrors.CodeInvalidInput, "invalid amount")
	}
	return AmountFromBig(b)
}

func (a Amount) raw() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// BigInt returns a copy of the underlying integer.
func (a Amount) BigInt() *big.Int { return new(big.Int).Set(a.raw()) }

func (a Amount) IsZero() bool { return a.v == nil || a.v.Sign() == 0 }

func (a Amount) Cmp(b Amount) int { return a.raw().Cmp(b.raw()) }

func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }

// Add returns a+b, failing on 256-bit overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := new(big.Int).Add(a.raw(), b.raw())
	if sum.Cmp(maxAmount) > 0 {
		return Amount{}, dErrors.New(dErrors.CodeInvariantViolation, "amount overflow")
	}
	return Amount{v: sum}, nil
}

// Sub returns a-b, failing when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Cmp(b) < 0 {
		return Amount{}, dErrors.New(dErrors.CodeInvariantViolation, "amount underflow")
	}
	return Amount{v: new(big.Int).Sub(a.raw(), b.raw())}, nil
}

// IsMultipleOf reports whether a is a multiple of g. A zero granularity
// never divides.
func (a Amount) IsMultipleOf(g Amount) bool {
	if g.IsZero() {
		return false
	}
	return new(big.Int).Mod(a.raw(), g.raw()).Sign() == 0
}

// Bytes32 is the big-endian 32-byte word encoding.
func (a Amount) Bytes32() Bytes32 {
	var out Bytes32
	a.raw().FillBytes(out[:])
	return out
}

func (a Amount) String() string { return a.raw().String() }

func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

func (a *Amount) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "amount must be a decimal string")
		}
		s = n.String()
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
