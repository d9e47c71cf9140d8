package audit

import (
	"time"

	"github.com/google/uuid"

	"tokenhold/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryLedger covers hold lifecycle and transfer events. Downstream
	// consumers rebuild hold history from these.
	CategoryLedger EventCategory = "ledger"

	// CategorySecurity covers certificate consumption and rejection.
	CategorySecurity EventCategory = "security"

	// CategoryAdmin covers token setup, controller, signer and list changes.
	CategoryAdmin EventCategory = "admin"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out. Actor is the
// authenticated caller; a zero Expiration means the hold never expires.
type Event struct {
	ID         uuid.UUID
	Category   EventCategory
	Timestamp  time.Time
	Action     string
	Token      domain.Address
	Actor      domain.Address
	HoldID     domain.HoldID    `json:",omitzero"`
	Partition  domain.Partition `json:",omitzero"`
	Sender     domain.Address   `json:",omitzero"`
	Recipient  domain.Address   `json:",omitzero"`
	Notary     domain.Address   `json:",omitzero"`
	Subject    domain.Address   `json:",omitzero"`
	Value      domain.Amount    `json:",omitzero"`
	Expiration time.Time        `json:",omitzero"`
	Secret     domain.Bytes32   `json:",omitzero"`
	Reason     string           `json:",omitempty"`
	RequestID  string           `json:",omitempty"`
}

type AuditEvent string

const (
	EventHoldCreated              AuditEvent = "hold_created"
	EventHoldExecuted             AuditEvent = "hold_executed"
	EventHoldExecutedAndKeptOpen  AuditEvent = "hold_executed_and_kept_open"
	EventHoldReleased             AuditEvent = "hold_released"
	EventHoldRenewed              AuditEvent = "hold_renewed"
	EventTransferExecuted         AuditEvent = "transfer_executed"
	EventCertificateConsumed      AuditEvent = "certificate_consumed"
	EventCertificateRejected      AuditEvent = "certificate_rejected"
	EventTokenRegistered          AuditEvent = "token_registered"
	EventTokenSetupUpdated        AuditEvent = "token_setup_updated"
	EventControllerAdded          AuditEvent = "controller_added"
	EventControllerRemoved        AuditEvent = "controller_removed"
	EventGranularityUpdated       AuditEvent = "partition_granularity_updated"
	EventCertificateSignerAdded   AuditEvent = "certificate_signer_added"
	EventCertificateSignerRemoved AuditEvent = "certificate_signer_removed"
	EventAllowlistChanged         AuditEvent = "allowlist_changed"
	EventBlocklistChanged         AuditEvent = "blocklist_changed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventHoldCreated:             CategoryLedger,
	EventHoldExecuted:            CategoryLedger,
	EventHoldExecutedAndKeptOpen: CategoryLedger,
	EventHoldReleased:            CategoryLedger,
	EventHoldRenewed:             CategoryLedger,
	EventTransferExecuted:        CategoryLedger,

	EventCertificateConsumed: CategorySecurity,
	EventCertificateRejected: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryAdmin.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryAdmin
}
