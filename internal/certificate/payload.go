package certificate

import (
	"encoding/binary"

	"tokenhold/internal/signature"
	"tokenhold/pkg/domain"
)

// Word is one 32-byte argument slot of a call payload.
type Word [32]byte

// Selector is the first four bytes of keccak256(method).
func Selector(method string) [4]byte {
	h := signature.Keccak256([]byte(method))
	var sel [4]byte
	copy(sel[:], h[:4])
	return sel
}

// Payload encodes a call the way certificates sign it: selector followed by
// one word per argument. The certificate itself is never an argument.
func Payload(method string, args ...Word) []byte {
	sel := Selector(method)
	out := make([]byte, 0, len(sel)+len(args)*32)
	out = append(out, sel[:]...)
	for _, a := range args {
		out = append(out, a[:]...)
	}
	return out
}

// AddressWord left-pads addr to 32 bytes.
func AddressWord(addr domain.Address) Word {
	var w Word
	copy(w[12:], addr[:])
	return w
}

func AmountWord(a domain.Amount) Word {
	return Word(a.Bytes32())
}

func Bytes32Word(b [32]byte) Word {
	return Word(b)
}

func UintWord(v uint64) Word {
	var w Word
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

func BoolWord(b bool) Word {
	var w Word
	if b {
		w[31] = 1
	}
	return w
}
