// Package eligibility keeps the per-token allow and block lists the transfer
// gate consults for senders and recipients.
package eligibility

import (
	"fmt"
	"time"

	"tokenhold/pkg/domain"
)

// List names one of the two address lists a token keeps.
type List string

const (
	ListAllow List = "allow"
	ListBlock List = "block"
)

func (l List) IsValid() bool {
	return l == ListAllow || l == ListBlock
}

func ParseList(s string) (List, error) {
	l := List(s)
	if !l.IsValid() {
		return "", fmt.Errorf("unknown eligibility list %q", s)
	}
	return l, nil
}

type Entry struct {
	Token     domain.Address `json:"token"`
	Address   domain.Address `json:"address"`
	List      List           `json:"list"`
	CreatedAt time.Time      `json:"created_at"`
}
