//go:build go1.18

package domain

import "testing"

// FuzzParseAddress checks that parsing never panics and that every accepted
// address round-trips through its canonical string form.
func FuzzParseAddress(f *testing.F) {
	f.Add("")
	f.Add("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	f.Add("0x0000000000000000000000000000000000000000")
	f.Add("'; DROP TABLE holds;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAddress(input)
		if err != nil {
			return
		}
		back, err := ParseAddress(a.String())
		if err != nil {
			t.Fatalf("canonical form failed to parse: %v", err)
		}
		if back != a {
			t.Fatal("round-trip changed address")
		}
	})
}

// FuzzParseAmount checks that accepted amounts stay inside 256 bits and
// round-trip through their decimal form.
func FuzzParseAmount(f *testing.F) {
	f.Add("0")
	f.Add("1000")
	f.Add("-1")
	f.Add("115792089237316195423570985008687907853269984665640564039457584007913129639936")

	f.Fuzz(func(t *testing.T, input string) {
		a, err := ParseAmount(input)
		if err != nil {
			return
		}
		if a.BigInt().BitLen() > 256 {
			t.Fatal("accepted amount wider than 256 bits")
		}
		back, err := ParseAmount(a.String())
		if err != nil || !back.Equal(a) {
			t.Fatal("round-trip changed amount")
		}
	})
}
