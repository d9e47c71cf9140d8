package hold

import (
	"time"

	"tokenhold/pkg/domain"
)

// releaseAuthority decides which release, if any, caller may perform. Expiry
// takes precedence so anyone can clear an expired hold, then the notary, then
// the recipient.
func releaseAuthority(h *Hold, caller domain.Address, now time.Time) (Status, bool) {
	switch {
	case h.IsExpired(now):
		return StatusReleasedOnExpiration, true
	case !h.Notary.IsZero() && caller == h.Notary:
		return StatusReleasedByNotary, true
	case caller == h.Recipient:
		return StatusReleasedByPayee, true
	default:
		return StatusNonExistent, false
	}
}

// executeAuthority reports whether caller may execute h, either as notary or
// by revealing the secret. The returned secret is the one to record.
func executeAuthority(h *Hold, caller domain.Address, secret *domain.Bytes32) (domain.Bytes32, bool) {
	if secret != nil && h.Unlocks(*secret) {
		return *secret, true
	}
	if !h.Notary.IsZero() && caller == h.Notary {
		return domain.Bytes32{}, true
	}
	return domain.Bytes32{}, false
}
