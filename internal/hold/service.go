package hold

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	holdmetrics "tokenhold/internal/hold/metrics"
	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
	"tokenhold/pkg/requestcontext"
)

// SetupReader resolves a token's configuration.
type SetupReader interface {
	Lookup(ctx context.Context, token domain.Address) (*tokensetup.Setup, bool, error)
}

// CertificateConsumer validates and consumes the certificate for one call.
type CertificateConsumer interface {
	Consume(ctx context.Context, token, caller domain.Address, payload, certificate []byte) error
}

// Settler moves executed value from sender to recipient. A zero from issues
// the value instead.
type Settler interface {
	SettleHold(ctx context.Context, token domain.Address, partition domain.Partition, from, to domain.Address, value domain.Amount) error
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store          Store
	balances       *Balances
	setups         SetupReader
	certificates   CertificateConsumer
	settler        Settler
	tx             TxRunner
	logger         *slog.Logger
	auditPublisher audit.Emitter
	metrics        *holdmetrics.Metrics
	tracer         trace.Tracer
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

func WithMetrics(m *holdmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(
	store Store,
	ledger BalanceReader,
	setups SetupReader,
	certificates CertificateConsumer,
	settler Settler,
	runner TxRunner,
	opts ...Option,
) (*Service, error) {
	if store == nil {
		return nil, errors.New("hold store is required")
	}
	if ledger == nil {
		return nil, errors.New("balance reader is required")
	}
	if setups == nil {
		return nil, errors.New("token setup reader is required")
	}
	if certificates == nil {
		return nil, errors.New("certificate consumer is required")
	}
	if settler == nil {
		return nil, errors.New("settler is required")
	}
	if runner == nil {
		return nil, errors.New("tx runner is required")
	}
	s := &Service{
		store:        store,
		balances:     NewBalances(store, ledger),
		setups:       setups,
		certificates: certificates,
		settler:      settler,
		tx:           runner,
		tracer:       otel.Tracer("tokenhold/hold"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Balances exposes the spendable-balance calculator backed by this service's store.
func (s *Service) Balances() *Balances {
	return s.balances
}

// GuardKey is the re-entrancy key hold and transfer mutations share per token.
func GuardKey(token domain.Address) string {
	return "token:" + token.String()
}

// creation describes one of the six create entry points.
type creation struct {
	method         string
	sender         domain.Address
	controllerOnly bool
	preHold        bool
	duration       time.Duration
	expiration     time.Time
	literal        bool
}

func (s *Service) Hold(ctx context.Context, caller, token domain.Address, req Request, duration time.Duration) (*Hold, error) {
	return s.create(ctx, caller, token, req, creation{method: MethodHold, sender: caller, duration: duration})
}

func (s *Service) HoldWithExpirationDate(ctx context.Context, caller, token domain.Address, req Request, expiration time.Time) (*Hold, error) {
	return s.create(ctx, caller, token, req, creation{
		method: MethodHoldWithExpirationDate, sender: caller, expiration: expiration, literal: true,
	})
}

// HoldFrom places a hold on sender's balance. Controllers only.
func (s *Service) HoldFrom(ctx context.Context, caller, token, sender domain.Address, req Request, duration time.Duration) (*Hold, error) {
	return s.create(ctx, caller, token, req, creation{
		method: MethodHoldFrom, sender: sender, controllerOnly: true, duration: duration,
	})
}

func (s *Service) HoldFromWithExpirationDate(ctx context.Context, caller, token, sender domain.Address, req Request, expiration time.Time) (*Hold, error) {
	return s.create(ctx, caller, token, req, creation{
		method: MethodHoldFromWithExpirationDate, sender: sender, controllerOnly: true, expiration: expiration, literal: true,
	})
}

// PreHoldFor reserves value that will be issued to the recipient on
// execution. It reserves no existing balance. Controllers only.
func (s *Service) PreHoldFor(ctx context.Context, caller, token domain.Address, req Request, duration time.Duration) (*Hold, error) {
	return s.create(ctx, caller, token, req, creation{
		method: MethodPreHoldFor, controllerOnly: true, preHold: true, duration: duration,
	})
}

func (s *Service) PreHoldForWithExpirationDate(ctx context.Context, caller, token domain.Address, req Request, expiration time.Time) (*Hold, error) {
	return s.create(ctx, caller, token, req, creation{
		method: MethodPreHoldForWithExpirationDate, controllerOnly: true, preHold: true, expiration: expiration, literal: true,
	})
}

func (s *Service) create(ctx context.Context, caller, token domain.Address, req Request, c creation) (*Hold, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if !c.preHold && c.sender.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sender is required")
	}
	if c.duration < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "duration must not be negative")
	}

	var created *Hold
	err := s.run(ctx, c.method, token, func(ctx context.Context) error {
		setup, err := s.activeSetup(ctx, token)
		if err != nil {
			return err
		}
		if c.controllerOnly && !setup.IsController(caller) {
			return dErrors.New(dErrors.CodeForbidden, "only token controllers can hold on behalf of others")
		}

		now := requestcontext.Now(ctx)
		expiration, timeArg, err := resolveExpiration(now, c.duration, c.expiration, c.literal)
		if err != nil {
			return err
		}

		if _, err := s.store.Get(ctx, token, req.ID); err == nil {
			return dErrors.New(dErrors.CodeConflict, "hold id already used")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read hold")
		}

		if !c.preHold {
			spendable, err := s.balances.SpendableBalanceOfByPartition(ctx, token, req.Partition, c.sender)
			if err != nil {
				return err
			}
			if req.Value.Cmp(spendable) > 0 {
				return dErrors.New(dErrors.CodeInsufficientFunds, "value exceeds spendable balance")
			}
		}

		if err := s.certificates.Consume(ctx, token, caller, CreatePayload(c.method, c.sender, req, timeArg), req.Certificate); err != nil {
			return err
		}

		created = &Hold{
			Token:      token,
			ID:         req.ID,
			Partition:  req.Partition,
			Sender:     c.sender,
			Recipient:  req.Recipient,
			Notary:     req.Notary,
			Value:      req.Value,
			Expiration: expiration,
			SecretHash: req.SecretHash,
			Status:     StatusOrdered,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.Create(ctx, created); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "hold id already used")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create hold")
		}
		s.afterCommit(ctx, audit.EventHoldCreated, caller, created, created.Value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func validateRequest(req Request) error {
	switch {
	case req.ID.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "hold id is required")
	case req.Value.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "value must be positive")
	case req.Recipient.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "recipient is required")
	case req.Notary.IsZero() && req.SecretHash.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "notary or secret hash is required")
	}
	return nil
}

// resolveExpiration turns a duration or literal timestamp into the stored
// expiration and the time argument the certificate was issued for. Zero means
// the hold never expires.
func resolveExpiration(now time.Time, d time.Duration, literal time.Time, isLiteral bool) (time.Time, uint64, error) {
	if isLiteral {
		arg := ExpirationArg(literal)
		if arg == 0 {
			return time.Time{}, 0, nil
		}
		exp := time.Unix(int64(arg), 0).UTC()
		if !exp.After(now) {
			return time.Time{}, 0, dErrors.New(dErrors.CodeInvalidInput, "expiration must be in the future")
		}
		return exp, arg, nil
	}
	arg := DurationArg(d)
	if arg == 0 {
		return time.Time{}, 0, nil
	}
	return now.Add(time.Duration(arg) * time.Second), arg, nil
}

// ExecuteHold transfers value to the recipient and closes the hold. Any
// unexecuted remainder returns to the sender's spendable balance. The stored
// Value keeps its pre-execution amount, even after a partial execution.
func (s *Service) ExecuteHold(ctx context.Context, caller, token domain.Address, id domain.HoldID, value domain.Amount, secret *domain.Bytes32) (*Hold, error) {
	return s.execute(ctx, caller, token, id, value, secret, false)
}

// ExecuteHoldAndKeepOpen transfers value and keeps the hold open with the
// remainder. Executing the full remainder closes it.
func (s *Service) ExecuteHoldAndKeepOpen(ctx context.Context, caller, token domain.Address, id domain.HoldID, value domain.Amount, secret *domain.Bytes32) (*Hold, error) {
	return s.execute(ctx, caller, token, id, value, secret, true)
}

func (s *Service) execute(ctx context.Context, caller, token domain.Address, id domain.HoldID, value domain.Amount, secret *domain.Bytes32, keepOpen bool) (*Hold, error) {
	if value.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "value must be positive")
	}
	op := "executeHold"
	if keepOpen {
		op = "executeHoldAndKeepOpen"
	}

	var updated *Hold
	err := s.run(ctx, op, token, func(ctx context.Context) error {
		h, err := s.activeHold(ctx, token, id)
		if err != nil {
			return err
		}
		revealed, ok := executeAuthority(h, caller, secret)
		if !ok {
			return dErrors.New(dErrors.CodeUnauthorized, "caller is not the notary and no valid secret was supplied")
		}
		now := requestcontext.Now(ctx)
		if h.IsExpired(now) {
			return dErrors.New(dErrors.CodeExpired, "hold has expired")
		}
		if value.Cmp(h.Value) > 0 {
			return dErrors.New(dErrors.CodeInvalidInput, "value exceeds held amount")
		}
		remainder, err := h.Value.Sub(value)
		if err != nil {
			return err
		}

		action := audit.EventHoldExecuted
		if keepOpen && !remainder.IsZero() {
			h.Status = StatusExecutedAndKeptOpen
			h.Value = remainder
			action = audit.EventHoldExecutedAndKeptOpen
		} else {
			h.Status = StatusExecuted
		}
		if !revealed.IsZero() {
			h.Secret = revealed
		}
		h.UpdatedAt = now
		if err := s.store.Update(ctx, h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update hold")
		}

		if err := s.settler.SettleHold(ctx, token, h.Partition, h.Sender, h.Recipient, value); err != nil {
			return err
		}
		updated = h
		s.afterCommit(ctx, action, caller, h, value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ReleaseHold returns the held value to the sender. The notary or the
// recipient may release at any time; anyone may once the hold expired.
func (s *Service) ReleaseHold(ctx context.Context, caller, token domain.Address, id domain.HoldID) (*Hold, error) {
	var updated *Hold
	err := s.run(ctx, "releaseHold", token, func(ctx context.Context) error {
		h, err := s.activeHold(ctx, token, id)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		status, ok := releaseAuthority(h, caller, now)
		if !ok {
			return dErrors.New(dErrors.CodeUnauthorized, "only the notary or the recipient can release an unexpired hold")
		}
		h.Status = status
		h.UpdatedAt = now
		if err := s.store.Update(ctx, h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update hold")
		}
		updated = h
		s.afterCommit(ctx, audit.EventHoldReleased, caller, h, h.Value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RenewHold replaces the expiration with now + duration; zero removes it.
func (s *Service) RenewHold(ctx context.Context, caller, token domain.Address, id domain.HoldID, duration time.Duration, certificate []byte) (*Hold, error) {
	if duration < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "duration must not be negative")
	}
	return s.renew(ctx, caller, token, id, MethodRenewHold, duration, time.Time{}, false, certificate)
}

func (s *Service) RenewHoldWithExpirationDate(ctx context.Context, caller, token domain.Address, id domain.HoldID, expiration time.Time, certificate []byte) (*Hold, error) {
	return s.renew(ctx, caller, token, id, MethodRenewHoldWithExpirationDate, 0, expiration, true, certificate)
}

func (s *Service) renew(ctx context.Context, caller, token domain.Address, id domain.HoldID, method string, d time.Duration, literal time.Time, isLiteral bool, certificate []byte) (*Hold, error) {
	var updated *Hold
	err := s.run(ctx, method, token, func(ctx context.Context) error {
		setup, err := s.activeSetup(ctx, token)
		if err != nil {
			return err
		}
		h, err := s.activeHold(ctx, token, id)
		if err != nil {
			return err
		}
		if caller != h.Sender && !setup.IsController(caller) {
			return dErrors.New(dErrors.CodeForbidden, "only the sender or a controller can renew a hold")
		}
		now := requestcontext.Now(ctx)
		if h.IsExpired(now) {
			return dErrors.New(dErrors.CodeExpired, "hold has expired")
		}
		expiration, timeArg, err := resolveExpiration(now, d, literal, isLiteral)
		if err != nil {
			return err
		}
		if err := s.certificates.Consume(ctx, token, caller, RenewPayload(method, id, timeArg), certificate); err != nil {
			return err
		}
		h.Expiration = expiration
		h.UpdatedAt = now
		if err := s.store.Update(ctx, h); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update hold")
		}
		updated = h
		s.afterCommit(ctx, audit.EventHoldRenewed, caller, h, h.Value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RetrieveHoldData returns the hold in any status. Unknown ids report
// StatusNonExistent rather than an error.
func (s *Service) RetrieveHoldData(ctx context.Context, token domain.Address, id domain.HoldID) (*Hold, error) {
	h, err := s.store.Get(ctx, token, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &Hold{Token: token, ID: id, Status: StatusNonExistent}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read hold")
	}
	return h, nil
}

func (s *Service) activeSetup(ctx context.Context, token domain.Address) (*tokensetup.Setup, error) {
	setup, ok, err := s.setups.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "token not registered")
	}
	if !setup.HoldsActivated {
		return nil, dErrors.New(dErrors.CodeInvalidState, "holds are not activated for this token")
	}
	return setup, nil
}

func (s *Service) activeHold(ctx context.Context, token domain.Address, id domain.HoldID) (*Hold, error) {
	h, err := s.store.Get(ctx, token, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "hold not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read hold")
	}
	if !h.Status.IsActive() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "hold is "+h.Status.String())
	}
	return h, nil
}

// run executes fn as one guarded unit of work with tracing and metrics.
func (s *Service) run(ctx context.Context, op string, token domain.Address, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "hold."+op, trace.WithAttributes(attribute.String("token", token.String())))
	defer span.End()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ctx, err := tx.Enter(ctx, GuardKey(token))
		if err != nil {
			return err
		}
		return fn(ctx)
	})
	s.metrics.ObserveOperation(op, time.Since(start))
	if err != nil {
		code := dErrors.CodeOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		s.metrics.IncrementRejection(op, string(code))
		if s.logger != nil {
			s.logger.DebugContext(ctx, "hold operation rejected", "operation", op, "token", token.String(), "code", code)
		}
	}
	return err
}

func (s *Service) afterCommit(ctx context.Context, action audit.AuditEvent, caller domain.Address, h *Hold, value domain.Amount) {
	snapshot := h.Clone()
	tx.AfterCommit(ctx, func(ctx context.Context) {
		s.metrics.IncrementTransition(snapshot.Status.String())
		audit.Log(ctx, s.logger, s.auditPublisher, action, audit.Event{
			Token:      snapshot.Token,
			Actor:      caller,
			HoldID:     snapshot.ID,
			Partition:  snapshot.Partition,
			Sender:     snapshot.Sender,
			Recipient:  snapshot.Recipient,
			Notary:     snapshot.Notary,
			Value:      value,
			Expiration: snapshot.Expiration,
			Secret:     snapshot.Secret,
			Reason:     snapshot.Status.String(),
		})
	})
}

func translateLedgerError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "token unknown to ledger")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger read failed")
}
