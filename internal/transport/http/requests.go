package httptransport

import (
	"encoding/hex"
	"strings"
	"time"

	"tokenhold/internal/hold"
	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
)

// HexBytes is a 0x-prefixed hex string on the wire.
type HexBytes []byte

func (b HexBytes) MarshalText() ([]byte, error) {
	return []byte("0x" + hex.EncodeToString(b)), nil
}

func (b *HexBytes) UnmarshalText(raw []byte) error {
	s := strings.TrimPrefix(string(raw), "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid hex bytes")
	}
	*b = decoded
	return nil
}

// expiry is the shared duration-or-timestamp part of create and renew bodies.
type expiry struct {
	DurationSeconds *uint64 `json:"duration_seconds,omitempty"`
	Expiration      *int64  `json:"expiration,omitempty"`
}

func (e expiry) validate() error {
	if e.DurationSeconds != nil && e.Expiration != nil {
		return dErrors.New(dErrors.CodeValidation, "set duration_seconds or expiration, not both")
	}
	if e.Expiration != nil && *e.Expiration < 0 {
		return dErrors.New(dErrors.CodeValidation, "expiration must not be negative")
	}
	return nil
}

func (e expiry) literal() bool {
	return e.Expiration != nil
}

func (e expiry) duration() time.Duration {
	if e.DurationSeconds == nil {
		return 0
	}
	return time.Duration(*e.DurationSeconds) * time.Second
}

// timestamp is the literal expiration; zero means none.
func (e expiry) timestamp() time.Time {
	if e.Expiration == nil || *e.Expiration == 0 {
		return time.Time{}
	}
	return time.Unix(*e.Expiration, 0).UTC()
}

// CreateHoldRequest is the body for POST /holds, /holds/from and /preholds.
type CreateHoldRequest struct {
	HoldID      domain.HoldID    `json:"hold_id"`
	Sender      domain.Address   `json:"sender,omitzero"`
	Recipient   domain.Address   `json:"recipient"`
	Notary      domain.Address   `json:"notary,omitzero"`
	Partition   domain.Partition `json:"partition"`
	Value       domain.Amount    `json:"value"`
	SecretHash  domain.Bytes32   `json:"secret_hash,omitzero"`
	Certificate HexBytes         `json:"certificate,omitempty"`
	expiry
}

func (r *CreateHoldRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.HoldID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "hold_id is required")
	}
	if r.Partition.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "partition is required")
	}
	return r.validate()
}

func (r *CreateHoldRequest) toDomain() hold.Request {
	return hold.Request{
		ID:          r.HoldID,
		Recipient:   r.Recipient,
		Notary:      r.Notary,
		Partition:   r.Partition,
		Value:       r.Value,
		SecretHash:  r.SecretHash,
		Certificate: r.Certificate,
	}
}

type ExecuteHoldRequest struct {
	Value    domain.Amount   `json:"value"`
	Secret   *domain.Bytes32 `json:"secret,omitempty"`
	KeepOpen bool            `json:"keep_open,omitempty"`
}

func (r *ExecuteHoldRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Value.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "value must be positive")
	}
	return nil
}

type RenewHoldRequest struct {
	Certificate HexBytes `json:"certificate,omitempty"`
	expiry
}

func (r *RenewHoldRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return r.validate()
}

// TransferRequest is the body for /can-transfer and /transfers. A from
// address other than the caller makes it an operator transfer.
type TransferRequest struct {
	Partition domain.Partition `json:"partition"`
	From      domain.Address   `json:"from,omitzero"`
	To        domain.Address   `json:"to"`
	Value     domain.Amount    `json:"value"`
	Data      HexBytes         `json:"data,omitempty"`
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Partition.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "partition is required")
	}
	return nil
}

type SetupRequest struct {
	tokensetup.Flags
	Controllers []domain.Address `json:"controllers,omitempty"`
}

func (r *SetupRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.CertificateMode > tokensetup.CertificateModeSalt {
		return dErrors.New(dErrors.CodeValidation, "unknown certificate mode")
	}
	return nil
}

type GranularityRequest struct {
	Granularity domain.Amount `json:"granularity"`
}

func (r *GranularityRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return nil
}
