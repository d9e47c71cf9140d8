// Package tokensetup is the registry of per-token configuration: certificate
// mode, list activation, granularity by partition, hold activation and the
// controller set.
package tokensetup

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"tokenhold/internal/platform/metrics"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
	"tokenhold/pkg/requestcontext"
)

// OwnerReader reports the ledger-registered owner of a token.
type OwnerReader interface {
	Owner(ctx context.Context, token domain.Address) (domain.Address, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store          Store
	owners         OwnerReader
	tx             TxRunner
	logger         *slog.Logger
	auditPublisher audit.Emitter
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, owners OwnerReader, runner TxRunner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("token setup store is required")
	}
	if owners == nil {
		return nil, errors.New("owner reader is required")
	}
	if runner == nil {
		return nil, errors.New("tx runner is required")
	}
	s := &Service{store: store, owners: owners, tx: runner}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates the setup for token. Only the ledger-reported owner may
// register; the owner becomes a controller when none are supplied.
func (s *Service) Register(ctx context.Context, caller, token domain.Address, flags Flags, controllers []domain.Address) (*Setup, error) {
	if token.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "token address is required")
	}
	var created *Setup
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		owner, err := s.owners.Owner(ctx, token)
		if err != nil {
			return translateLedgerError(err)
		}
		if caller != owner {
			return dErrors.New(dErrors.CodeForbidden, "only the token owner can register the token")
		}
		ctrls := dedupe(controllers)
		if len(ctrls) == 0 {
			ctrls = []domain.Address{owner}
		}
		now := requestcontext.Now(ctx)
		created = &Setup{
			Token:       token,
			Flags:       flags,
			Controllers: ctrls,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.store.Create(ctx, created); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "token already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to register token")
		}
		s.afterCommit(ctx, audit.EventTokenRegistered, audit.Event{Token: token, Actor: caller})
		tx.AfterCommit(ctx, func(context.Context) { s.metrics.IncrementTokensRegistered() })
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Get returns the setup or a not_found error.
func (s *Service) Get(ctx context.Context, token domain.Address) (*Setup, error) {
	setup, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "token not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load token setup")
	}
	return setup, nil
}

// Lookup reports whether the token is registered without treating absence as
// an error.
func (s *Service) Lookup(ctx context.Context, token domain.Address) (*Setup, bool, error) {
	setup, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load token setup")
	}
	return setup, true, nil
}

// IsAdmin reports whether addr is a controller or the ledger-reported owner.
func (s *Service) IsAdmin(ctx context.Context, token, addr domain.Address) (bool, error) {
	setup, err := s.Get(ctx, token)
	if err != nil {
		return false, err
	}
	return s.isAdmin(ctx, setup, addr)
}

func (s *Service) isAdmin(ctx context.Context, setup *Setup, addr domain.Address) (bool, error) {
	if setup.IsController(addr) {
		return true, nil
	}
	owner, err := s.owners.Owner(ctx, setup.Token)
	if err != nil {
		return false, translateLedgerError(err)
	}
	return addr == owner, nil
}

// IsController reports controller membership; unknown tokens have none.
func (s *Service) IsController(ctx context.Context, token, addr domain.Address) (bool, error) {
	setup, ok, err := s.Lookup(ctx, token)
	if err != nil || !ok {
		return false, err
	}
	return setup.IsController(addr), nil
}

// UpdateFlags replaces the switchable configuration.
func (s *Service) UpdateFlags(ctx context.Context, caller, token domain.Address, flags Flags) (*Setup, error) {
	return s.mutate(ctx, caller, token, audit.EventTokenSetupUpdated, audit.Event{}, func(setup *Setup) error {
		setup.Flags = flags
		return nil
	})
}

func (s *Service) AddController(ctx context.Context, caller, token, controller domain.Address) (*Setup, error) {
	if controller.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "controller address is required")
	}
	return s.mutate(ctx, caller, token, audit.EventControllerAdded, audit.Event{Subject: controller}, func(setup *Setup) error {
		if setup.IsController(controller) {
			return dErrors.New(dErrors.CodeConflict, "address is already a controller")
		}
		setup.Controllers = append(setup.Controllers, controller)
		return nil
	})
}

func (s *Service) RemoveController(ctx context.Context, caller, token, controller domain.Address) (*Setup, error) {
	return s.mutate(ctx, caller, token, audit.EventControllerRemoved, audit.Event{Subject: controller}, func(setup *Setup) error {
		return removeController(setup, controller)
	})
}

// RenounceControl removes the caller from the controller set. It does not
// need owner rights, only current membership.
func (s *Service) RenounceControl(ctx context.Context, caller, token domain.Address) (*Setup, error) {
	var updated *Setup
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		setup, err := s.Get(ctx, token)
		if err != nil {
			return err
		}
		if err := removeController(setup, caller); err != nil {
			return err
		}
		setup.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, setup); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update token setup")
		}
		updated = setup
		s.afterCommit(ctx, audit.EventControllerRemoved, audit.Event{Token: token, Actor: caller, Subject: caller, Reason: "renounced"})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetPartitionGranularity sets the granularity used for partition when
// granularity by partition is activated. A zero granularity clears it.
func (s *Service) SetPartitionGranularity(ctx context.Context, caller, token domain.Address, partition domain.Partition, granularity domain.Amount) (*Setup, error) {
	return s.mutate(ctx, caller, token, audit.EventGranularityUpdated, audit.Event{Partition: partition, Value: granularity}, func(setup *Setup) error {
		if granularity.IsZero() {
			delete(setup.PartitionGranularity, partition)
			return nil
		}
		if setup.PartitionGranularity == nil {
			setup.PartitionGranularity = make(map[domain.Partition]domain.Amount)
		}
		setup.PartitionGranularity[partition] = granularity
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, caller, token domain.Address, action audit.AuditEvent, event audit.Event, apply func(*Setup) error) (*Setup, error) {
	var updated *Setup
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		setup, err := s.Get(ctx, token)
		if err != nil {
			return err
		}
		ok, err := s.isAdmin(ctx, setup, caller)
		if err != nil {
			return err
		}
		if !ok {
			return dErrors.New(dErrors.CodeForbidden, "caller is neither controller nor owner")
		}
		if err := apply(setup); err != nil {
			return err
		}
		setup.UpdatedAt = requestcontext.Now(ctx)
		if err := s.store.Update(ctx, setup); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update token setup")
		}
		updated = setup
		event.Token = token
		event.Actor = caller
		s.afterCommit(ctx, action, event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) afterCommit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	tx.AfterCommit(ctx, func(ctx context.Context) {
		audit.Log(ctx, s.logger, s.auditPublisher, action, event)
	})
}

func removeController(setup *Setup, controller domain.Address) error {
	i := slices.Index(setup.Controllers, controller)
	if i < 0 {
		return dErrors.New(dErrors.CodeNotFound, "address is not a controller")
	}
	setup.Controllers = slices.Delete(setup.Controllers, i, i+1)
	return nil
}

func translateLedgerError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "token unknown to ledger")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger lookup failed")
}
