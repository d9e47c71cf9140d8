package httptransport

import (
	"time"

	"tokenhold/internal/eligibility"
	"tokenhold/internal/transfer"
	"tokenhold/pkg/domain"
)

type BalanceResponse struct {
	Token     domain.Address    `json:"token"`
	Holder    *domain.Address   `json:"holder,omitempty"`
	Partition *domain.Partition `json:"partition,omitempty"`
	Value     domain.Amount     `json:"value"`
}

type VerdictResponse struct {
	Status    transfer.StatusCode `json:"status"`
	AppCode   domain.Bytes32      `json:"app_code"`
	Partition domain.Partition    `json:"partition"`
	Success   bool                `json:"success"`
}

func FromVerdict(v transfer.Verdict) VerdictResponse {
	return VerdictResponse{
		Status:    v.Status,
		AppCode:   v.AppCode,
		Partition: v.Partition,
		Success:   v.OK(),
	}
}

type SignersResponse struct {
	Token   domain.Address   `json:"token"`
	Signers []domain.Address `json:"signers"`
}

type EligibilityEntryResponse struct {
	Address   domain.Address `json:"address"`
	CreatedAt time.Time      `json:"created_at"`
}

type EligibilityListResponse struct {
	Token   domain.Address             `json:"token"`
	List    eligibility.List           `json:"list"`
	Entries []EligibilityEntryResponse `json:"entries"`
}

func FromEntries(token domain.Address, list eligibility.List, entries []eligibility.Entry) EligibilityListResponse {
	out := EligibilityListResponse{Token: token, List: list, Entries: make([]EligibilityEntryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, EligibilityEntryResponse{Address: e.Address, CreatedAt: e.CreatedAt})
	}
	return out
}
