// Package httptransport exposes the hold, transfer and token administration
// services over a chi router under /v1.
package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tokenhold/internal/eligibility"
	"tokenhold/internal/hold"
	"tokenhold/internal/tokensetup"
	"tokenhold/internal/transfer"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	"tokenhold/pkg/platform/httputil"
	"tokenhold/pkg/requestcontext"
)

type HoldService interface {
	Hold(ctx context.Context, caller, token domain.Address, req hold.Request, duration time.Duration) (*hold.Hold, error)
	HoldWithExpirationDate(ctx context.Context, caller, token domain.Address, req hold.Request, expiration time.Time) (*hold.Hold, error)
	HoldFrom(ctx context.Context, caller, token, sender domain.Address, req hold.Request, duration time.Duration) (*hold.Hold, error)
	HoldFromWithExpirationDate(ctx context.Context, caller, token, sender domain.Address, req hold.Request, expiration time.Time) (*hold.Hold, error)
	PreHoldFor(ctx context.Context, caller, token domain.Address, req hold.Request, duration time.Duration) (*hold.Hold, error)
	PreHoldForWithExpirationDate(ctx context.Context, caller, token domain.Address, req hold.Request, expiration time.Time) (*hold.Hold, error)
	ExecuteHold(ctx context.Context, caller, token domain.Address, id domain.HoldID, value domain.Amount, secret *domain.Bytes32) (*hold.Hold, error)
	ExecuteHoldAndKeepOpen(ctx context.Context, caller, token domain.Address, id domain.HoldID, value domain.Amount, secret *domain.Bytes32) (*hold.Hold, error)
	ReleaseHold(ctx context.Context, caller, token domain.Address, id domain.HoldID) (*hold.Hold, error)
	RenewHold(ctx context.Context, caller, token domain.Address, id domain.HoldID, duration time.Duration, certificate []byte) (*hold.Hold, error)
	RenewHoldWithExpirationDate(ctx context.Context, caller, token domain.Address, id domain.HoldID, expiration time.Time, certificate []byte) (*hold.Hold, error)
	RetrieveHoldData(ctx context.Context, token domain.Address, id domain.HoldID) (*hold.Hold, error)
}

type BalanceService interface {
	BalanceOnHold(ctx context.Context, token, holder domain.Address) (domain.Amount, error)
	BalanceOnHoldByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error)
	SpendableBalanceOf(ctx context.Context, token, holder domain.Address) (domain.Amount, error)
	SpendableBalanceOfByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error)
	TotalSupplyOnHold(ctx context.Context, token domain.Address) (domain.Amount, error)
	TotalSupplyOnHoldByPartition(ctx context.Context, token domain.Address, partition domain.Partition) (domain.Amount, error)
}

type TransferGate interface {
	CanTransferByPartition(ctx context.Context, token domain.Address, req transfer.Request) (transfer.Verdict, error)
	CanOperatorTransferByPartition(ctx context.Context, token domain.Address, req transfer.Request) (transfer.Verdict, error)
	TransferByPartition(ctx context.Context, caller, token domain.Address, req transfer.Request) (transfer.Verdict, error)
	OperatorTransferByPartition(ctx context.Context, caller, token domain.Address, req transfer.Request) (transfer.Verdict, error)
}

type SetupService interface {
	Lookup(ctx context.Context, token domain.Address) (*tokensetup.Setup, bool, error)
	Register(ctx context.Context, caller, token domain.Address, flags tokensetup.Flags, controllers []domain.Address) (*tokensetup.Setup, error)
	UpdateFlags(ctx context.Context, caller, token domain.Address, flags tokensetup.Flags) (*tokensetup.Setup, error)
	AddController(ctx context.Context, caller, token, controller domain.Address) (*tokensetup.Setup, error)
	RemoveController(ctx context.Context, caller, token, controller domain.Address) (*tokensetup.Setup, error)
	RenounceControl(ctx context.Context, caller, token domain.Address) (*tokensetup.Setup, error)
	SetPartitionGranularity(ctx context.Context, caller, token domain.Address, partition domain.Partition, granularity domain.Amount) (*tokensetup.Setup, error)
}

type SignerService interface {
	AddSigner(ctx context.Context, caller, token, signer domain.Address) error
	RemoveSigner(ctx context.Context, caller, token, signer domain.Address) error
	Signers(ctx context.Context, token domain.Address) ([]domain.Address, error)
}

type EligibilityService interface {
	Add(ctx context.Context, caller, token, addr domain.Address, list eligibility.List) error
	Remove(ctx context.Context, caller, token, addr domain.Address, list eligibility.List) error
	List(ctx context.Context, token domain.Address, list eligibility.List) ([]eligibility.Entry, error)
}

// Handler wires the /v1 endpoints to the services.
type Handler struct {
	holds       HoldService
	balances    BalanceService
	gate        TransferGate
	setups      SetupService
	signers     SignerService
	eligibility EligibilityService
	logger      *slog.Logger
}

// New returns an error when any service is missing; a nil logger falls back
// to slog.Default.
func New(
	holds HoldService,
	balances BalanceService,
	gate TransferGate,
	setups SetupService,
	signers SignerService,
	eligibility EligibilityService,
	logger *slog.Logger,
) (*Handler, error) {
	switch {
	case holds == nil:
		return nil, errors.New("hold service is required")
	case balances == nil:
		return nil, errors.New("balance service is required")
	case gate == nil:
		return nil, errors.New("transfer gate is required")
	case setups == nil:
		return nil, errors.New("setup service is required")
	case signers == nil:
		return nil, errors.New("signer service is required")
	case eligibility == nil:
		return nil, errors.New("eligibility service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		holds:       holds,
		balances:    balances,
		gate:        gate,
		setups:      setups,
		signers:     signers,
		eligibility: eligibility,
		logger:      logger,
	}, nil
}

// Register mounts every /v1 route on r. Authentication is applied by the
// caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/tokens/{token}", func(r chi.Router) {
		r.Post("/holds", h.HandleCreateHold(kindHold))
		r.Post("/holds/from", h.HandleCreateHold(kindHoldFrom))
		r.Post("/preholds", h.HandleCreateHold(kindPreHold))
		r.Get("/holds/{holdID}", h.HandleRetrieveHold)
		r.Post("/holds/{holdID}/execute", h.HandleExecuteHold)
		r.Post("/holds/{holdID}/release", h.HandleReleaseHold)
		r.Post("/holds/{holdID}/renew", h.HandleRenewHold)

		r.Get("/holders/{holder}/on-hold", h.HandleBalanceOnHold)
		r.Get("/holders/{holder}/spendable", h.HandleSpendableBalance)
		r.Get("/on-hold", h.HandleTotalSupplyOnHold)

		r.Post("/can-transfer", h.HandleCanTransfer)
		r.Post("/transfers", h.HandleTransfer)

		r.Get("/setup", h.HandleGetSetup)
		r.Put("/setup", h.HandlePutSetup)
		r.Post("/controllers/renounce", h.HandleRenounceControl)
		r.Post("/controllers/{addr}", h.HandleAddController)
		r.Delete("/controllers/{addr}", h.HandleRemoveController)
		r.Get("/signers", h.HandleListSigners)
		r.Post("/signers/{addr}", h.HandleAddSigner)
		r.Delete("/signers/{addr}", h.HandleRemoveSigner)
		r.Get("/allowlist", h.HandleListEligibility(eligibility.ListAllow))
		r.Post("/allowlist/{addr}", h.HandleAddEligibility(eligibility.ListAllow))
		r.Delete("/allowlist/{addr}", h.HandleRemoveEligibility(eligibility.ListAllow))
		r.Get("/blocklist", h.HandleListEligibility(eligibility.ListBlock))
		r.Post("/blocklist/{addr}", h.HandleAddEligibility(eligibility.ListBlock))
		r.Delete("/blocklist/{addr}", h.HandleRemoveEligibility(eligibility.ListBlock))
		r.Put("/partitions/{partition}/granularity", h.HandleSetGranularity)
	})
}

// caller returns the authenticated account or writes 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return domain.ZeroAddress, false
	}
	return caller, true
}

func (h *Handler) pathAddress(w http.ResponseWriter, r *http.Request, name string) (domain.Address, bool) {
	addr, err := domain.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid "+name+" address"))
		return domain.ZeroAddress, false
	}
	return addr, true
}

func (h *Handler) pathHoldID(w http.ResponseWriter, r *http.Request) (domain.HoldID, bool) {
	id, err := domain.ParseHoldID(chi.URLParam(r, "holdID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid hold id"))
		return domain.HoldID{}, false
	}
	return id, true
}

// queryPartition reads the optional ?partition= filter.
func (h *Handler) queryPartition(w http.ResponseWriter, r *http.Request) (*domain.Partition, bool) {
	raw := r.URL.Query().Get("partition")
	if raw == "" {
		return nil, true
	}
	p, err := domain.ParsePartition(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid partition"))
		return nil, false
	}
	return &p, true
}

// fail logs at a level matching the error class and writes the response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, args...)
	} else {
		h.logger.WarnContext(ctx, msg, args...)
	}
	httputil.WriteError(w, err)
}
