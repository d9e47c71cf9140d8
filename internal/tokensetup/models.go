package tokensetup

import (
	"slices"
	"strings"
	"time"

	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
)

// CertificateMode selects how transfer and hold calls on a token are
// authorised.
type CertificateMode uint8

const (
	CertificateModeNone CertificateMode = iota
	CertificateModeNonce
	CertificateModeSalt
)

func (m CertificateMode) String() string {
	switch m {
	case CertificateModeNone:
		return "none"
	case CertificateModeNonce:
		return "nonce"
	case CertificateModeSalt:
		return "salt"
	default:
		return "unknown"
	}
}

func ParseCertificateMode(s string) (CertificateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CertificateModeNone, nil
	case "nonce":
		return CertificateModeNonce, nil
	case "salt":
		return CertificateModeSalt, nil
	default:
		return CertificateModeNone, dErrors.New(dErrors.CodeInvalidInput, "unknown certificate mode: "+s)
	}
}

func (m CertificateMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *CertificateMode) UnmarshalText(raw []byte) error {
	parsed, err := ParseCertificateMode(string(raw))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Flags are the switchable parts of a token setup.
type Flags struct {
	CertificateMode                 CertificateMode `json:"certificate_mode"`
	AllowlistActivated              bool            `json:"allowlist_activated"`
	BlocklistActivated              bool            `json:"blocklist_activated"`
	GranularityByPartitionActivated bool            `json:"granularity_by_partition_activated"`
	HoldsActivated                  bool            `json:"holds_activated"`
}

// Setup is the per-token configuration. Controllers keep insertion order.
type Setup struct {
	Token domain.Address `json:"token"`
	Flags
	Controllers          []domain.Address                   `json:"controllers"`
	PartitionGranularity map[domain.Partition]domain.Amount `json:"partition_granularity,omitempty"`
	CreatedAt            time.Time                          `json:"created_at"`
	UpdatedAt            time.Time                          `json:"updated_at"`
}

func (s *Setup) IsController(addr domain.Address) bool {
	return slices.Contains(s.Controllers, addr)
}

// GranularityFor returns the partition granularity when one is set.
func (s *Setup) GranularityFor(partition domain.Partition) (domain.Amount, bool) {
	g, ok := s.PartitionGranularity[partition]
	return g, ok
}

// Clone returns a deep copy; stores hand out clones only.
func (s *Setup) Clone() *Setup {
	if s == nil {
		return nil
	}
	c := *s
	c.Controllers = slices.Clone(s.Controllers)
	if s.PartitionGranularity != nil {
		c.PartitionGranularity = make(map[domain.Partition]domain.Amount, len(s.PartitionGranularity))
		for p, g := range s.PartitionGranularity {
			c.PartitionGranularity[p] = g
		}
	}
	return &c
}

func dedupe(addrs []domain.Address) []domain.Address {
	out := make([]domain.Address, 0, len(addrs))
	for _, a := range addrs {
		if a.IsZero() || slices.Contains(out, a) {
			continue
		}
		out = append(out, a)
	}
	return out
}
