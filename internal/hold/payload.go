package hold

import (
	"time"

	"tokenhold/internal/certificate"
	"tokenhold/pkg/domain"
)

// Method names certificates are issued for.
const (
	MethodHold                         = "hold"
	MethodHoldWithExpirationDate       = "holdWithExpirationDate"
	MethodHoldFrom                     = "holdFrom"
	MethodHoldFromWithExpirationDate   = "holdFromWithExpirationDate"
	MethodPreHoldFor                   = "preHoldFor"
	MethodPreHoldForWithExpirationDate = "preHoldForWithExpirationDate"
	MethodRenewHold                    = "renewHold"
	MethodRenewHoldWithExpirationDate  = "renewHoldWithExpirationDate"
)

// Request carries the caller-chosen attributes of a new hold.
type Request struct {
	ID          domain.HoldID
	Recipient   domain.Address
	Notary      domain.Address
	Partition   domain.Partition
	Value       domain.Amount
	SecretHash  domain.Bytes32
	Certificate []byte
}

// CreatePayload is the call a creation certificate must be issued for.
// sender is encoded only for holdFrom variants; timeArg is the duration in
// seconds or the expiration timestamp, matching the method.
func CreatePayload(method string, sender domain.Address, req Request, timeArg uint64) []byte {
	args := make([]certificate.Word, 0, 8)
	if method == MethodHoldFrom || method == MethodHoldFromWithExpirationDate {
		args = append(args, certificate.AddressWord(sender))
	}
	args = append(args,
		certificate.Bytes32Word(domain.Bytes32(req.ID)),
		certificate.AddressWord(req.Recipient),
		certificate.AddressWord(req.Notary),
		certificate.Bytes32Word(domain.Bytes32(req.Partition)),
		certificate.AmountWord(req.Value),
		certificate.UintWord(timeArg),
		certificate.Bytes32Word(req.SecretHash),
	)
	return certificate.Payload(method, args...)
}

// RenewPayload is the call a renewal certificate must be issued for.
func RenewPayload(method string, id domain.HoldID, timeArg uint64) []byte {
	return certificate.Payload(method, certificate.Bytes32Word(domain.Bytes32(id)), certificate.UintWord(timeArg))
}

// DurationArg encodes a duration as whole seconds.
func DurationArg(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d / time.Second)
}

// ExpirationArg encodes an absolute expiration; zero means none.
func ExpirationArg(t time.Time) uint64 {
	if t.IsZero() || t.Unix() <= 0 {
		return 0
	}
	return uint64(t.Unix())
}
