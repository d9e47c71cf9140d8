// Package transfer is the gate every partition transfer passes through:
// certificate policy, allow and block lists, hooks, granularity, holds and
// operator authorisation, evaluated in a fixed order.
package transfer

import (
	"fmt"
	"strconv"
	"strings"

	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
)

// StatusCode is the single-byte verdict of a transfer check.
type StatusCode byte

const (
	StatusNoChecker           StatusCode = 0x00
	StatusFailure             StatusCode = 0x50
	StatusSuccess             StatusCode = 0x51
	StatusInsufficientBalance StatusCode = 0x52
	StatusHalted              StatusCode = 0x54
	StatusInvalidSender       StatusCode = 0x56
	StatusInvalidReceiver     StatusCode = 0x57
	StatusInvalidOperator     StatusCode = 0x58
)

func (c StatusCode) String() string {
	return fmt.Sprintf("0x%02x", byte(c))
}

func (c StatusCode) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText accepts the "0x.." form written by MarshalText. Bytes that
// are not one of the status codes above are rejected.
func (c *StatusCode) UnmarshalText(raw []byte) error {
	digits, ok := strings.CutPrefix(strings.ToLower(string(raw)), "0x")
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid status code %q", raw))
	}
	n, err := strconv.ParseUint(digits, 16, 8)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("invalid status code %q", raw))
	}
	switch code := StatusCode(n); code {
	case StatusNoChecker, StatusFailure, StatusSuccess, StatusInsufficientBalance,
		StatusHalted, StatusInvalidSender, StatusInvalidReceiver, StatusInvalidOperator:
		*c = code
		return nil
	}
	return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown status code %q", raw))
}

// Application codes carried next to the status code. They name the rule that
// produced the verdict.
var (
	AppCodeNone                 = appCode("")
	AppCodeTokenNotRegistered   = appCode("TOKEN_NOT_REGISTERED")
	AppCodeCertificateInvalid   = appCode("CERTIFICATE_INVALID")
	AppCodeSenderNotEligible    = appCode("SENDER_NOT_ELIGIBLE")
	AppCodeSenderHookRejected   = appCode("SENDER_HOOK_REJECTED")
	AppCodeRecipientZero        = appCode("RECIPIENT_ZERO_ADDRESS")
	AppCodeRecipientNotEligible = appCode("RECIPIENT_NOT_ELIGIBLE")
	AppCodeRecipientRejected    = appCode("RECIPIENT_HOOK_REJECTED")
	AppCodeGranularity          = appCode("INVALID_GRANULARITY")
	AppCodeValueOnHold          = appCode("VALUE_ON_HOLD")
	AppCodeInsufficientBalance  = appCode("INSUFFICIENT_BALANCE")
	AppCodeOperatorNotAllowed   = appCode("OPERATOR_NOT_AUTHORIZED")
)

func appCode(s string) domain.Bytes32 {
	var b domain.Bytes32
	copy(b[:], s)
	return b
}

// Verdict is the outcome of a transfer check.
type Verdict struct {
	Status    StatusCode       `json:"status"`
	AppCode   domain.Bytes32   `json:"application_code"`
	Partition domain.Partition `json:"partition"`
}

func (v Verdict) OK() bool {
	return v.Status == StatusSuccess
}
