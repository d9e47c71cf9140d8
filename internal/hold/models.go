// Package hold implements revocable, time-bounded escrow commitments on a
// holder's partition balance and the spendable-balance accounting they imply.
package hold

import (
	"crypto/sha256"
	"fmt"
	"time"

	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
)

// Status is the lifecycle state of a hold. The numeric values are stored.
type Status uint8

const (
	StatusNonExistent Status = iota
	StatusOrdered
	StatusExecuted
	StatusExecutedAndKeptOpen
	StatusReleasedByNotary
	StatusReleasedByPayee
	StatusReleasedOnExpiration
)

var statusNames = map[Status]string{
	StatusNonExistent:          "non_existent",
	StatusOrdered:              "ordered",
	StatusExecuted:             "executed",
	StatusExecutedAndKeptOpen:  "executed_and_kept_open",
	StatusReleasedByNotary:     "released_by_notary",
	StatusReleasedByPayee:      "released_by_payee",
	StatusReleasedOnExpiration: "released_on_expiration",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(raw []byte) error {
	for status, name := range statusNames {
		if name == string(raw) {
			*s = status
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown hold status %q", raw))
}

// IsActive reports whether the hold still reserves part of the sender's balance.
func (s Status) IsActive() bool {
	return s == StatusOrdered || s == StatusExecutedAndKeptOpen
}

func (s Status) IsTerminal() bool {
	return s != StatusNonExistent && !s.IsActive()
}

// Hold is one escrow commitment. Sender is zero for a pre-hold; Notary is
// zero when only SecretHash gates execution. A zero Expiration never expires.
type Hold struct {
	Token      domain.Address   `json:"token"`
	ID         domain.HoldID    `json:"hold_id"`
	Partition  domain.Partition `json:"partition"`
	Sender     domain.Address   `json:"sender"`
	Recipient  domain.Address   `json:"recipient"`
	Notary     domain.Address   `json:"notary"`
	Value      domain.Amount    `json:"value"`
	Expiration time.Time        `json:"expiration,omitzero"`
	SecretHash domain.Bytes32   `json:"secret_hash"`
	Secret     domain.Bytes32   `json:"secret"`
	Status     Status           `json:"status"`
	CreatedAt  time.Time        `json:"created_at,omitzero"`
	UpdatedAt  time.Time        `json:"updated_at,omitzero"`
}

func (h *Hold) IsPreHold() bool {
	return h.Sender.IsZero()
}

// IsExpired reports whether now is past the expiration.
func (h *Hold) IsExpired(now time.Time) bool {
	return !h.Expiration.IsZero() && now.After(h.Expiration)
}

// Unlocks reports whether secret is the pre-image of the hold's secret hash.
func (h *Hold) Unlocks(secret domain.Bytes32) bool {
	if h.SecretHash.IsZero() {
		return false
	}
	return SecretHash(secret) == h.SecretHash
}

func (h *Hold) Clone() *Hold {
	if h == nil {
		return nil
	}
	c := *h
	return &c
}

// SecretHash is sha256 of the 32-byte secret.
func SecretHash(secret domain.Bytes32) domain.Bytes32 {
	return domain.Bytes32(sha256.Sum256(secret[:]))
}
