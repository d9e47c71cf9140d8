package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into coded domain errors.
//
//   - ErrNotFound: record does not exist (hold, token setup, signer)
//   - ErrConflict: record already exists (hold id reuse)
//   - ErrExpired: hold or certificate past its expiration
//   - ErrAlreadyUsed: replay state already consumed (salt, nonce)
//   - ErrInvalidState: record in the wrong state for the operation
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
