package transfer

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tokenhold/internal/certificate"
	"tokenhold/internal/hooks"
	"tokenhold/internal/ledger"
	"tokenhold/internal/platform/metrics"
	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
)

// Certificate method names for transfers.
const (
	MethodTransferByPartition         = "transferByPartition"
	MethodOperatorTransferByPartition = "operatorTransferByPartition"
)

type SetupReader interface {
	Lookup(ctx context.Context, token domain.Address) (*tokensetup.Setup, bool, error)
}

type CertificatePolicy interface {
	Check(ctx context.Context, token, caller domain.Address, payload, certificate []byte) error
	Consume(ctx context.Context, token, caller domain.Address, payload, certificate []byte) error
}

type EligibilityChecker interface {
	Eligible(ctx context.Context, setup *tokensetup.Setup, addr domain.Address) (bool, error)
}

type SpendableReader interface {
	SpendableBalanceOfByPartition(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Request is one partition transfer. Operator is zero when the holder moves
// its own funds; Data carries the certificate.
type Request struct {
	Partition domain.Partition
	Operator  domain.Address
	From      domain.Address
	To        domain.Address
	Value     domain.Amount
	Data      []byte
}

type Gate struct {
	ledger         ledger.Ledger
	setups         SetupReader
	certificates   CertificatePolicy
	eligibility    EligibilityChecker
	spendable      SpendableReader
	tx             TxRunner
	hooks          *hooks.Registry
	logger         *slog.Logger
	auditPublisher audit.Emitter
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Gate)

func WithHooks(r *hooks.Registry) Option {
	return func(g *Gate) {
		g.hooks = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(g *Gate) {
		g.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func New(
	l ledger.Ledger,
	setups SetupReader,
	certificates CertificatePolicy,
	eligibility EligibilityChecker,
	spendable SpendableReader,
	runner TxRunner,
	opts ...Option,
) (*Gate, error) {
	if l == nil {
		return nil, errors.New("ledger is required")
	}
	if setups == nil {
		return nil, errors.New("token setup reader is required")
	}
	if certificates == nil {
		return nil, errors.New("certificate policy is required")
	}
	if eligibility == nil {
		return nil, errors.New("eligibility checker is required")
	}
	if spendable == nil {
		return nil, errors.New("spendable balance reader is required")
	}
	if runner == nil {
		return nil, errors.New("tx runner is required")
	}
	g := &Gate{
		ledger:       l,
		setups:       setups,
		certificates: certificates,
		eligibility:  eligibility,
		spendable:    spendable,
		tx:           runner,
		tracer:       otel.Tracer("tokenhold/transfer"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Payload is the call a transfer certificate must be issued for.
func Payload(req Request) []byte {
	if req.Operator.IsZero() {
		return certificate.Payload(MethodTransferByPartition,
			certificate.Bytes32Word(domain.Bytes32(req.Partition)),
			certificate.AddressWord(req.To),
			certificate.AmountWord(req.Value),
		)
	}
	return certificate.Payload(MethodOperatorTransferByPartition,
		certificate.Bytes32Word(domain.Bytes32(req.Partition)),
		certificate.AddressWord(req.From),
		certificate.AddressWord(req.To),
		certificate.AmountWord(req.Value),
	)
}

// CanTransferByPartition reports whether from could move value to req.To.
// A negative answer is a verdict, not an error.
func (g *Gate) CanTransferByPartition(ctx context.Context, token domain.Address, req Request) (Verdict, error) {
	req.Operator = domain.ZeroAddress
	return g.check(ctx, token, req)
}

// CanOperatorTransferByPartition is CanTransferByPartition for req.Operator
// acting on req.From's balance.
func (g *Gate) CanOperatorTransferByPartition(ctx context.Context, token domain.Address, req Request) (Verdict, error) {
	if req.Operator.IsZero() {
		return Verdict{}, dErrors.New(dErrors.CodeInvalidInput, "operator is required")
	}
	return g.check(ctx, token, req)
}

func (g *Gate) check(ctx context.Context, token domain.Address, req Request) (Verdict, error) {
	ctx, span := g.tracer.Start(ctx, "transfer.Check", trace.WithAttributes(attribute.String("token", token.String())))
	defer span.End()

	if err := validate(token, req); err != nil {
		return Verdict{}, err
	}
	v, err := g.evaluate(ctx, token, req, false)
	if err != nil {
		span.RecordError(err)
		return Verdict{}, err
	}
	span.SetAttributes(attribute.String("status", v.Status.String()))
	g.metrics.IncrementVerdict(v.Status.String(), "check")
	return v, nil
}

// TransferByPartition moves the caller's own funds. The certificate in
// req.Data is consumed.
func (g *Gate) TransferByPartition(ctx context.Context, caller, token domain.Address, req Request) (Verdict, error) {
	req.Operator = domain.ZeroAddress
	req.From = caller
	return g.transfer(ctx, token, req)
}

// OperatorTransferByPartition moves req.From's funds on the caller's behalf.
func (g *Gate) OperatorTransferByPartition(ctx context.Context, caller, token domain.Address, req Request) (Verdict, error) {
	req.Operator = caller
	return g.transfer(ctx, token, req)
}

func (g *Gate) transfer(ctx context.Context, token domain.Address, req Request) (Verdict, error) {
	ctx, span := g.tracer.Start(ctx, "transfer.Execute", trace.WithAttributes(attribute.String("token", token.String())))
	defer span.End()

	if err := validate(token, req); err != nil {
		return Verdict{}, err
	}
	var verdict Verdict
	err := g.tx.RunInTx(ctx, func(ctx context.Context) error {
		ctx, err := tx.Enter(ctx, guardKey(token))
		if err != nil {
			return err
		}
		verdict, err = g.evaluate(ctx, token, req, true)
		if err != nil {
			return err
		}
		g.metrics.IncrementVerdict(verdict.Status.String(), "execute")
		if !verdict.OK() {
			return dErrors.New(dErrors.CodeTransferRejected, "transfer rejected with status "+verdict.Status.String())
		}

		if !req.Operator.IsZero() && req.Operator != req.From {
			if err := g.spendAllowanceIfNeeded(ctx, token, req); err != nil {
				return err
			}
		}
		if err := g.ledger.TransferByPartition(ctx, token, req.Partition, req.From, req.To, req.Value); err != nil {
			return translateLedgerError(err)
		}
		if err := g.notify(ctx, token, req); err != nil {
			return err
		}

		tx.AfterCommit(ctx, func(ctx context.Context) {
			audit.Log(ctx, g.logger, g.auditPublisher, audit.EventTransferExecuted, audit.Event{
				Token:     token,
				Actor:     actor(req),
				Partition: req.Partition,
				Sender:    req.From,
				Recipient: req.To,
				Value:     req.Value,
			})
		})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return verdict, err
	}
	return verdict, nil
}

// SettleHold moves executed hold value from sender to recipient, or issues it
// when from is zero. The hold already reserved the value, so only eligibility
// is re-checked. It runs inside the caller's unit of work.
func (g *Gate) SettleHold(ctx context.Context, token domain.Address, partition domain.Partition, from, to domain.Address, value domain.Amount) error {
	ctx, span := g.tracer.Start(ctx, "transfer.SettleHold", trace.WithAttributes(attribute.String("token", token.String())))
	defer span.End()

	setup, err := g.setup(ctx, token)
	if err != nil {
		return err
	}
	if setup == nil {
		return dErrors.New(dErrors.CodeNotFound, "token not registered")
	}
	if to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "recipient is required")
	}
	if !from.IsZero() {
		ok, err := g.eligibility.Eligible(ctx, setup, from)
		if err != nil {
			return err
		}
		if !ok {
			return dErrors.New(dErrors.CodeTransferRejected, "sender is not eligible")
		}
	}
	ok, err := g.eligibility.Eligible(ctx, setup, to)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeTransferRejected, "recipient is not eligible")
	}

	if from.IsZero() {
		err = g.ledger.IssueByPartition(ctx, token, partition, to, value)
	} else {
		err = g.ledger.TransferByPartition(ctx, token, partition, from, to, value)
	}
	if err != nil {
		span.RecordError(err)
		return translateLedgerError(err)
	}
	return g.notify(ctx, token, Request{Partition: partition, From: from, To: to, Value: value})
}

// evaluate runs the rules in order and returns the first failing verdict.
// With consume set the certificate is consumed rather than checked.
func (g *Gate) evaluate(ctx context.Context, token domain.Address, req Request, consume bool) (Verdict, error) {
	verdict := func(status StatusCode, code domain.Bytes32) (Verdict, error) {
		return Verdict{Status: status, AppCode: code, Partition: req.Partition}, nil
	}

	setup, err := g.setup(ctx, token)
	if err != nil {
		return Verdict{}, err
	}
	if setup == nil {
		return verdict(StatusNoChecker, AppCodeTokenNotRegistered)
	}

	payload := Payload(req)
	caller := actor(req)
	if consume {
		err = g.certificates.Consume(ctx, token, caller, payload, req.Data)
	} else {
		err = g.certificates.Check(ctx, token, caller, payload, req.Data)
	}
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return verdict(StatusHalted, AppCodeCertificateInvalid)
		}
		return Verdict{}, err
	}

	ok, err := g.eligibility.Eligible(ctx, setup, req.From)
	if err != nil {
		return Verdict{}, err
	}
	if !ok {
		return verdict(StatusInvalidSender, AppCodeSenderNotEligible)
	}

	t := hookTransfer(token, req)
	if v, ok := g.hooks.SendValidatorFor(req.From); ok && !v.CanSend(ctx, t) {
		return verdict(StatusInvalidSender, AppCodeSenderHookRejected)
	}
	if c, ok := g.hooks.CheckerFor(token); ok {
		if pass, status, code := c.CheckTransfer(ctx, t); !pass {
			return verdict(StatusCode(status), code)
		}
	}

	if req.To.IsZero() {
		return verdict(StatusInvalidReceiver, AppCodeRecipientZero)
	}
	ok, err = g.eligibility.Eligible(ctx, setup, req.To)
	if err != nil {
		return Verdict{}, err
	}
	if !ok {
		return verdict(StatusInvalidReceiver, AppCodeRecipientNotEligible)
	}
	if v, ok := g.hooks.ReceiveValidatorFor(req.To); ok && !v.CanReceive(ctx, t) {
		return verdict(StatusInvalidReceiver, AppCodeRecipientRejected)
	}

	granularity, err := g.granularity(ctx, setup, req.Partition)
	if err != nil {
		return Verdict{}, err
	}
	if req.Value.IsZero() || !req.Value.IsMultipleOf(granularity) {
		return verdict(StatusFailure, AppCodeGranularity)
	}

	balance, err := g.ledger.BalanceOfByPartition(ctx, token, req.Partition, req.From)
	if err != nil {
		return Verdict{}, translateLedgerError(err)
	}
	if req.Value.Cmp(balance) > 0 {
		return verdict(StatusInsufficientBalance, AppCodeInsufficientBalance)
	}
	if setup.HoldsActivated {
		spendable, err := g.spendable.SpendableBalanceOfByPartition(ctx, token, req.Partition, req.From)
		if err != nil {
			return Verdict{}, err
		}
		if req.Value.Cmp(spendable) > 0 {
			return verdict(StatusInsufficientBalance, AppCodeValueOnHold)
		}
	}

	if !req.Operator.IsZero() && req.Operator != req.From {
		ok, err := g.operatorAuthorized(ctx, setup, req)
		if err != nil {
			return Verdict{}, err
		}
		if !ok {
			return verdict(StatusInvalidOperator, AppCodeOperatorNotAllowed)
		}
	}
	return verdict(StatusSuccess, AppCodeNone)
}

func (g *Gate) setup(ctx context.Context, token domain.Address) (*tokensetup.Setup, error) {
	setup, ok, err := g.setups.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return setup, nil
}

// granularity is the partition granularity when that mode is active and one
// is set, the token granularity otherwise.
func (g *Gate) granularity(ctx context.Context, setup *tokensetup.Setup, partition domain.Partition) (domain.Amount, error) {
	if setup.GranularityByPartitionActivated {
		if gran, ok := setup.GranularityFor(partition); ok {
			return gran, nil
		}
	}
	gran, err := g.ledger.Granularity(ctx, setup.Token)
	if err != nil {
		return domain.Amount{}, translateLedgerError(err)
	}
	return gran, nil
}

// operatorAuthorized accepts controllers, operators authorised for the
// partition, and spenders whose allowance covers the value.
func (g *Gate) operatorAuthorized(ctx context.Context, setup *tokensetup.Setup, req Request) (bool, error) {
	if setup.IsController(req.Operator) {
		return true, nil
	}
	ok, err := g.ledger.IsOperatorForPartition(ctx, setup.Token, req.Partition, req.Operator, req.From)
	if err != nil {
		return false, translateLedgerError(err)
	}
	if ok {
		return true, nil
	}
	allowance, err := g.ledger.AllowanceByPartition(ctx, setup.Token, req.Partition, req.From, req.Operator)
	if err != nil {
		return false, translateLedgerError(err)
	}
	return allowance.Cmp(req.Value) >= 0, nil
}

// spendAllowanceIfNeeded charges the allowance when it was the only grant.
func (g *Gate) spendAllowanceIfNeeded(ctx context.Context, token domain.Address, req Request) error {
	setup, err := g.setup(ctx, token)
	if err != nil {
		return err
	}
	if setup.IsController(req.Operator) {
		return nil
	}
	ok, err := g.ledger.IsOperatorForPartition(ctx, token, req.Partition, req.Operator, req.From)
	if err != nil {
		return translateLedgerError(err)
	}
	if ok {
		return nil
	}
	if err := g.ledger.SpendAllowanceByPartition(ctx, token, req.Partition, req.From, req.Operator, req.Value); err != nil {
		return translateLedgerError(err)
	}
	return nil
}

// notify calls the sender and recipient hooks after the balances moved.
func (g *Gate) notify(ctx context.Context, token domain.Address, req Request) error {
	t := hookTransfer(token, req)
	if s, ok := g.hooks.SenderFor(req.From); ok && !req.From.IsZero() {
		if err := s.TokensToTransfer(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTransferRejected, "sender hook failed")
		}
	}
	if r, ok := g.hooks.RecipientFor(req.To); ok {
		if err := r.TokensReceived(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTransferRejected, "recipient hook failed")
		}
	}
	return nil
}

func hookTransfer(token domain.Address, req Request) hooks.Transfer {
	return hooks.Transfer{
		Token:     token,
		Partition: req.Partition,
		Operator:  req.Operator,
		From:      req.From,
		To:        req.To,
		Value:     req.Value,
		Data:      req.Data,
	}
}

func actor(req Request) domain.Address {
	if req.Operator.IsZero() {
		return req.From
	}
	return req.Operator
}

func validate(token domain.Address, req Request) error {
	if token.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "token address is required")
	}
	if req.From.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "sender is required")
	}
	return nil
}

// guardKey matches the key the hold service enters, so a hook cannot start a
// transfer of the same token from inside a hold execution either.
func guardKey(token domain.Address) string {
	return "token:" + token.String()
}

func translateLedgerError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "token unknown to ledger")
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger call failed")
}
