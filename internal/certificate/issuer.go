package certificate

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"tokenhold/internal/signature"
	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
)

// Domain identifies the deployment certificates are bound to.
type Domain struct {
	ChainID uint64
	Name    string
}

func (d Domain) Separator(token domain.Address) [32]byte {
	return DomainSeparator(d.ChainID, d.Name, token)
}

// Issuer signs certificates for an off-chain certificate signer.
type Issuer struct {
	key    *secp256k1.PrivateKey
	domain Domain
}

func NewIssuer(key *secp256k1.PrivateKey, d Domain) *Issuer {
	return &Issuer{key: key, domain: d}
}

// ParseIssuerKey reads a 32-byte hex private key.
func ParseIssuerKey(hexKey string) (*secp256k1.PrivateKey, error) {
	raw, err := domain.ParseBytes32(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse signer key: %w", err)
	}
	return secp256k1.PrivKeyFromBytes(raw[:]), nil
}

// Address is the signer address to register with the validator.
func (i *Issuer) Address() domain.Address {
	return signature.AddressFromPublicKey(i.key.PubKey())
}

// IssueNonce signs a nonce-mode certificate.
func (i *Issuer) IssueNonce(token, caller domain.Address, payload []byte, expiration time.Time, nonce uint64) []byte {
	return i.issue(tokensetup.CertificateModeNonce, token, caller, payload, expiration, NonceWord(nonce))
}

// IssueSalt signs a salt-mode certificate.
func (i *Issuer) IssueSalt(token, caller domain.Address, payload []byte, expiration time.Time, salt [32]byte) []byte {
	return i.issue(tokensetup.CertificateModeSalt, token, caller, payload, expiration, salt)
}

func (i *Issuer) issue(mode tokensetup.CertificateMode, token, caller domain.Address, payload []byte, expiration time.Time, replay [32]byte) []byte {
	exp := uint64(max(expiration.Unix(), 0))
	digest := Digest(i.domain.Separator(token), caller, token, payload, exp, replay)
	c := Certificate{Expiration: exp, Replay: replay}
	copy(c.Signature[:], signature.Sign(i.key, digest))
	return c.Encode(mode)
}

// NewSalt draws a random salt.
func NewSalt() ([32]byte, error) {
	var salt [32]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, fmt.Errorf("read random salt: %w", err)
	}
	return salt, nil
}
