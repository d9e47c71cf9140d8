package eligibility

import (
	"context"
	"errors"
	"log/slog"

	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
	"tokenhold/pkg/requestcontext"
)

// AdminChecker reports whether an address may administer a token.
type AdminChecker interface {
	IsAdmin(ctx context.Context, token, addr domain.Address) (bool, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store          Store
	admins         AdminChecker
	tx             TxRunner
	logger         *slog.Logger
	auditPublisher audit.Emitter
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

func New(store Store, admins AdminChecker, runner TxRunner, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("eligibility store is required")
	}
	if admins == nil {
		return nil, errors.New("admin checker is required")
	}
	if runner == nil {
		return nil, errors.New("tx runner is required")
	}
	s := &Service{store: store, admins: admins, tx: runner}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Eligible applies the token's active lists: a block-listed address is never
// eligible, and with the allow list active only listed addresses are.
func (s *Service) Eligible(ctx context.Context, setup *tokensetup.Setup, addr domain.Address) (bool, error) {
	if setup.BlocklistActivated {
		blocked, err := s.store.Contains(ctx, setup.Token, addr, ListBlock)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read block list")
		}
		if blocked {
			return false, nil
		}
	}
	if setup.AllowlistActivated {
		allowed, err := s.store.Contains(ctx, setup.Token, addr, ListAllow)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read allow list")
		}
		return allowed, nil
	}
	return true, nil
}

func (s *Service) Contains(ctx context.Context, token, addr domain.Address, list List) (bool, error) {
	ok, err := s.store.Contains(ctx, token, addr, list)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read eligibility list")
	}
	return ok, nil
}

func (s *Service) List(ctx context.Context, token domain.Address, list List) ([]Entry, error) {
	entries, err := s.store.List(ctx, token, list)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list eligibility entries")
	}
	return entries, nil
}

// Add puts addr on list. Controllers and the token owner may change lists.
func (s *Service) Add(ctx context.Context, caller, token, addr domain.Address, list List) error {
	if !list.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown eligibility list")
	}
	if addr.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "address is required")
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorize(ctx, caller, token); err != nil {
			return err
		}
		entry := Entry{Token: token, Address: addr, List: list, CreatedAt: requestcontext.Now(ctx)}
		if err := s.store.Add(ctx, entry); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "address is already listed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add eligibility entry")
		}
		s.afterCommit(ctx, caller, token, addr, list, "added")
		return nil
	})
}

func (s *Service) Remove(ctx context.Context, caller, token, addr domain.Address, list List) error {
	if !list.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown eligibility list")
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.authorize(ctx, caller, token); err != nil {
			return err
		}
		if err := s.store.Remove(ctx, token, addr, list); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "address is not listed")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove eligibility entry")
		}
		s.afterCommit(ctx, caller, token, addr, list, "removed")
		return nil
	})
}

func (s *Service) authorize(ctx context.Context, caller, token domain.Address) error {
	ok, err := s.admins.IsAdmin(ctx, token, caller)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, "caller cannot manage eligibility lists")
	}
	return nil
}

func (s *Service) afterCommit(ctx context.Context, caller, token, addr domain.Address, list List, change string) {
	action := audit.EventAllowlistChanged
	if list == ListBlock {
		action = audit.EventBlocklistChanged
	}
	tx.AfterCommit(ctx, func(ctx context.Context) {
		audit.Log(ctx, s.logger, s.auditPublisher, action, audit.Event{
			Token:   token,
			Actor:   caller,
			Subject: addr,
			Reason:  change,
		})
	})
}
