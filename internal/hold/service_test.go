package hold

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"tokenhold/internal/certificate"
	holdmetrics "tokenhold/internal/hold/metrics"
	"tokenhold/internal/ledger"
	"tokenhold/internal/signature"
	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/audit/publisher"
	auditmemory "tokenhold/pkg/platform/audit/store/memory"
	"tokenhold/pkg/platform/tx"
	"tokenhold/pkg/requestcontext"
)

var (
	token      = domain.MustParseAddress("0x00000000000000000000000000000000000000aa")
	owner      = domain.MustParseAddress("0x0000000000000000000000000000000000000001")
	controller = domain.MustParseAddress("0x0000000000000000000000000000000000000c01")
	holder     = domain.MustParseAddress("0x000000000000000000000000000000000000a11c")
	recipient  = domain.MustParseAddress("0x0000000000000000000000000000000000000b0b")
	notary     = domain.MustParseAddress("0x0000000000000000000000000000000000000707")
	stranger   = domain.MustParseAddress("0x0000000000000000000000000000000000000bad")
	start      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testDomain = certificate.Domain{ChainID: 1, Name: "tokenhold"}
)

// ledgerSettler moves executed value straight through the ledger.
type ledgerSettler struct {
	ledger *ledger.Memory
	err    error
	hook   func(ctx context.Context) error
}

func (l *ledgerSettler) SettleHold(ctx context.Context, token domain.Address, partition domain.Partition, from, to domain.Address, value domain.Amount) error {
	if l.err != nil {
		return l.err
	}
	var err error
	if from.IsZero() {
		err = l.ledger.IssueByPartition(ctx, token, partition, to, value)
	} else {
		err = l.ledger.TransferByPartition(ctx, token, partition, from, to, value)
	}
	if err != nil {
		return err
	}
	if l.hook != nil {
		return l.hook(ctx)
	}
	return nil
}

type HoldServiceSuite struct {
	suite.Suite
	ctx       context.Context
	ledger    *ledger.Memory
	setups    *tokensetup.Service
	certs     *certificate.Validator
	store     *InMemoryStore
	events    *auditmemory.InMemoryStore
	settler   *ledgerSettler
	runner    *tx.Runner
	service   *Service
	partition domain.Partition
}

func TestHoldServiceSuite(t *testing.T) {
	suite.Run(t, new(HoldServiceSuite))
}

func (s *HoldServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), start)
	var err error
	s.partition, err = domain.PartitionFromLabel("issued")
	s.Require().NoError(err)

	s.ledger = ledger.NewMemory()
	s.Require().NoError(s.ledger.CreateToken(s.ctx, token, owner, domain.NewAmount(1)))
	s.Require().NoError(s.ledger.IssueByPartition(s.ctx, token, s.partition, holder, domain.NewAmount(1000)))

	s.runner = tx.NewRunner()
	s.setups, err = tokensetup.New(tokensetup.NewInMemoryStore(), s.ledger, s.runner)
	s.Require().NoError(err)
	_, err = s.setups.Register(s.ctx, owner, token, tokensetup.Flags{HoldsActivated: true}, []domain.Address{controller})
	s.Require().NoError(err)

	s.certs, err = certificate.New(certificate.NewInMemoryStore(), s.setups, signature.NewVerifier(), s.runner,
		certificate.WithDomain(testDomain))
	s.Require().NoError(err)

	s.store = NewInMemoryStore()
	s.events = auditmemory.NewInMemoryStore()
	s.settler = &ledgerSettler{ledger: s.ledger}
	s.service, err = New(s.store, s.ledger, s.setups, s.certs, s.settler, s.runner,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.NewPublisher(s.events)),
		WithMetrics(holdmetrics.New(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
}

func (s *HoldServiceSuite) request(id byte, value uint64) Request {
	return Request{
		ID:        domain.HoldID{id},
		Recipient: recipient,
		Notary:    notary,
		Partition: s.partition,
		Value:     domain.NewAmount(value),
	}
}

func (s *HoldServiceSuite) hold(id byte, value uint64, d time.Duration) *Hold {
	h, err := s.service.Hold(s.ctx, holder, token, s.request(id, value), d)
	s.Require().NoError(err)
	return h
}

func (s *HoldServiceSuite) spendable() string {
	v, err := s.service.Balances().SpendableBalanceOfByPartition(s.ctx, token, s.partition, holder)
	s.Require().NoError(err)
	return v.String()
}

func (s *HoldServiceSuite) balanceOf(addr domain.Address) string {
	v, err := s.ledger.BalanceOfByPartition(s.ctx, token, s.partition, addr)
	s.Require().NoError(err)
	return v.String()
}

func (s *HoldServiceSuite) later(d time.Duration) context.Context {
	return requestcontext.WithTime(s.ctx, start.Add(d))
}

func (s *HoldServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.ledger, s.setups, s.certs, s.settler, s.runner)
		s.Require().Error(err)
		s.Contains(err.Error(), "hold store is required")
	})
	s.Run("nil settler returns error", func() {
		_, err := New(s.store, s.ledger, s.setups, s.certs, nil, s.runner)
		s.Error(err)
	})
	s.Run("nil runner returns error", func() {
		_, err := New(s.store, s.ledger, s.setups, s.certs, s.settler, nil)
		s.Error(err)
	})
}

// ===
// Creation
// ===

func (s *HoldServiceSuite) TestCreateValidation() {
	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"zero hold id", func(r *Request) { r.ID = domain.HoldID{} }},
		{"zero value", func(r *Request) { r.Value = domain.NewAmount(0) }},
		{"zero recipient", func(r *Request) { r.Recipient = domain.ZeroAddress }},
		{"neither notary nor secret hash", func(r *Request) { r.Notary = domain.ZeroAddress }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := s.request(1, 10)
			tc.mutate(&req)
			_, err := s.service.Hold(s.ctx, holder, token, req, time.Hour)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}

	s.Run("secret hash alone is enough", func() {
		req := s.request(2, 10)
		req.Notary = domain.ZeroAddress
		req.SecretHash = SecretHash(domain.Bytes32{1})
		_, err := s.service.Hold(s.ctx, holder, token, req, 0)
		s.NoError(err)
	})
}

func (s *HoldServiceSuite) TestCreate() {
	s.Run("records the hold and reserves balance", func() {
		h := s.hold(1, 600, time.Hour)
		s.Equal(StatusOrdered, h.Status)
		s.Equal(holder, h.Sender)
		s.Equal(start.Add(time.Hour), h.Expiration)
		s.Equal("400", s.spendable())
		s.Equal("1000", s.balanceOf(holder))
		s.Len(s.events.ListByAction(s.ctx, token, audit.EventHoldCreated), 1)
	})

	s.Run("reused hold id conflicts", func() {
		_, err := s.service.Hold(s.ctx, holder, token, s.request(1, 1), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("value above spendable balance", func() {
		_, err := s.service.Hold(s.ctx, holder, token, s.request(2, 401), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
		s.Equal("400", s.spendable())
	})

	s.Run("zero duration never expires", func() {
		h := s.hold(3, 400, 0)
		s.True(h.Expiration.IsZero())
		s.Equal("0", s.spendable())
	})
}

func (s *HoldServiceSuite) TestCreateWithExpirationDate() {
	s.Run("future timestamp", func() {
		exp := start.Add(2 * time.Hour)
		h, err := s.service.HoldWithExpirationDate(s.ctx, holder, token, s.request(1, 10), exp)
		s.Require().NoError(err)
		s.True(exp.Equal(h.Expiration))
	})

	s.Run("past timestamp is rejected", func() {
		_, err := s.service.HoldWithExpirationDate(s.ctx, holder, token, s.request(2, 10), start.Add(-time.Minute))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("zero timestamp never expires", func() {
		h, err := s.service.HoldWithExpirationDate(s.ctx, holder, token, s.request(3, 10), time.Time{})
		s.Require().NoError(err)
		s.True(h.Expiration.IsZero())
	})
}

func (s *HoldServiceSuite) TestHoldFromAndPreHold() {
	s.Run("holdFrom requires a controller", func() {
		_, err := s.service.HoldFrom(s.ctx, stranger, token, holder, s.request(1, 10), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("controller holds from a holder", func() {
		h, err := s.service.HoldFrom(s.ctx, controller, token, holder, s.request(1, 100), 0)
		s.Require().NoError(err)
		s.Equal(holder, h.Sender)
		s.Equal("900", s.spendable())
	})

	s.Run("holdFrom needs a sender", func() {
		_, err := s.service.HoldFrom(s.ctx, controller, token, domain.ZeroAddress, s.request(2, 10), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("preHoldFor requires a controller", func() {
		_, err := s.service.PreHoldFor(s.ctx, holder, token, s.request(3, 10), 0)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("pre-hold reserves nobody's balance and issues on execution", func() {
		h, err := s.service.PreHoldForWithExpirationDate(s.ctx, controller, token, s.request(4, 5000), start.Add(time.Hour))
		s.Require().NoError(err)
		s.True(h.IsPreHold())
		s.Equal("900", s.spendable())

		total, err := s.service.Balances().TotalSupplyOnHold(s.ctx, token)
		s.Require().NoError(err)
		s.Equal("100", total.String())

		_, err = s.service.ExecuteHold(s.ctx, notary, token, h.ID, domain.NewAmount(5000), nil)
		s.Require().NoError(err)
		s.Equal("5000", s.balanceOf(recipient))
	})
}

func (s *HoldServiceSuite) TestHoldsNotActivated() {
	_, err := s.setups.UpdateFlags(s.ctx, owner, token, tokensetup.Flags{})
	s.Require().NoError(err)

	_, err = s.service.Hold(s.ctx, holder, token, s.request(1, 10), 0)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	other := domain.MustParseAddress("0x00000000000000000000000000000000000000ff")
	_, err = s.service.Hold(s.ctx, holder, other, s.request(1, 10), 0)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// ===
// Balances
// ===

func (s *HoldServiceSuite) TestBalances() {
	other, err := domain.PartitionFromLabel("locked")
	s.Require().NoError(err)
	s.Require().NoError(s.ledger.IssueByPartition(s.ctx, token, other, holder, domain.NewAmount(500)))

	s.hold(1, 600, 0)
	req := s.request(2, 200)
	req.Partition = other
	_, err = s.service.Hold(s.ctx, holder, token, req, 0)
	s.Require().NoError(err)

	b := s.service.Balances()
	onHold, err := b.BalanceOnHold(s.ctx, token, holder)
	s.Require().NoError(err)
	s.Equal("800", onHold.String())

	onHoldP, err := b.BalanceOnHoldByPartition(s.ctx, token, other, holder)
	s.Require().NoError(err)
	s.Equal("200", onHoldP.String())

	spendable, err := b.SpendableBalanceOf(s.ctx, token, holder)
	s.Require().NoError(err)
	s.Equal("700", spendable.String())

	total, err := b.TotalSupplyOnHoldByPartition(s.ctx, token, s.partition)
	s.Require().NoError(err)
	s.Equal("600", total.String())
}

// ===
// Execution
// ===

func (s *HoldServiceSuite) TestExecuteWithSecret() {
	secret := domain.Bytes32{0x5e, 0xc7}
	req := s.request(1, 600)
	req.Notary = domain.ZeroAddress
	req.SecretHash = SecretHash(secret)
	_, err := s.service.Hold(s.ctx, holder, token, req, time.Hour)
	s.Require().NoError(err)

	s.Run("wrong pre-image is unauthorised", func() {
		wrong := domain.Bytes32{1}
		_, err := s.service.ExecuteHold(s.ctx, recipient, token, req.ID, domain.NewAmount(600), &wrong)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("missing pre-image is unauthorised", func() {
		_, err := s.service.ExecuteHold(s.ctx, recipient, token, req.ID, domain.NewAmount(600), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("correct pre-image executes", func() {
		h, err := s.service.ExecuteHold(s.ctx, recipient, token, req.ID, domain.NewAmount(600), &secret)
		s.Require().NoError(err)
		s.Equal(StatusExecuted, h.Status)
		s.Equal(secret, h.Secret)
		s.Equal("600", s.balanceOf(recipient))
		s.Equal("400", s.balanceOf(holder))
		s.Equal("400", s.spendable())
	})
}

func (s *HoldServiceSuite) TestExecuteAndKeepOpen() {
	s.hold(1, 600, time.Hour)
	id := domain.HoldID{1}

	h, err := s.service.ExecuteHoldAndKeepOpen(s.ctx, notary, token, id, domain.NewAmount(10), nil)
	s.Require().NoError(err)
	s.Equal(StatusExecutedAndKeptOpen, h.Status)
	s.Equal("590", h.Value.String())
	s.Equal("10", s.balanceOf(recipient))
	s.Equal("400", s.spendable())

	_, err = s.service.ExecuteHoldAndKeepOpen(s.ctx, notary, token, id, domain.NewAmount(591), nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	h, err = s.service.ExecuteHold(s.ctx, notary, token, id, domain.NewAmount(590), nil)
	s.Require().NoError(err)
	s.Equal(StatusExecuted, h.Status)
	s.Equal("600", s.balanceOf(recipient))
	s.Len(s.events.ListByAction(s.ctx, token, audit.EventHoldExecutedAndKeptOpen), 1)
	s.Len(s.events.ListByAction(s.ctx, token, audit.EventHoldExecuted), 1)
}

func (s *HoldServiceSuite) TestKeepOpenWithFullValueCloses() {
	s.hold(1, 50, 0)
	h, err := s.service.ExecuteHoldAndKeepOpen(s.ctx, notary, token, domain.HoldID{1}, domain.NewAmount(50), nil)
	s.Require().NoError(err)
	s.Equal(StatusExecuted, h.Status)
}

func (s *HoldServiceSuite) TestExecutePartialReleasesRemainder() {
	s.hold(1, 600, 0)
	h, err := s.service.ExecuteHold(s.ctx, notary, token, domain.HoldID{1}, domain.NewAmount(100), nil)
	s.Require().NoError(err)
	s.Equal(StatusExecuted, h.Status)
	s.Equal("600", h.Value.String())
	s.Equal("100", s.balanceOf(recipient))
	s.Equal("900", s.spendable())
}

func (s *HoldServiceSuite) TestExecuteRejections() {
	s.hold(1, 600, time.Hour)
	id := domain.HoldID{1}

	s.Run("stranger is unauthorised", func() {
		_, err := s.service.ExecuteHold(s.ctx, stranger, token, id, domain.NewAmount(1), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero value", func() {
		_, err := s.service.ExecuteHold(s.ctx, notary, token, id, domain.NewAmount(0), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown hold", func() {
		_, err := s.service.ExecuteHold(s.ctx, notary, token, domain.HoldID{9}, domain.NewAmount(1), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("expired hold", func() {
		_, err := s.service.ExecuteHold(s.later(2*time.Hour), notary, token, id, domain.NewAmount(1), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})
}

func (s *HoldServiceSuite) TestFailedSettlementRollsBack() {
	s.hold(1, 600, 0)
	s.events.Clear()
	s.settler.err = errors.New("ledger unavailable")

	_, err := s.service.ExecuteHold(s.ctx, notary, token, domain.HoldID{1}, domain.NewAmount(600), nil)
	s.Require().Error(err)

	h, err := s.service.RetrieveHoldData(s.ctx, token, domain.HoldID{1})
	s.Require().NoError(err)
	s.Equal(StatusOrdered, h.Status)
	s.Equal("400", s.spendable())
	s.Empty(s.events.ListByAction(s.ctx, token, audit.EventHoldExecuted))
}

func (s *HoldServiceSuite) TestReentrantHookIsRejected() {
	s.hold(1, 600, 0)
	s.hold(2, 100, 0)
	s.settler.hook = func(ctx context.Context) error {
		_, err := s.service.ReleaseHold(ctx, notary, token, domain.HoldID{2})
		return err
	}

	_, err := s.service.ExecuteHold(s.ctx, notary, token, domain.HoldID{1}, domain.NewAmount(600), nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeReentrant))

	h, err := s.service.RetrieveHoldData(s.ctx, token, domain.HoldID{1})
	s.Require().NoError(err)
	s.Equal(StatusOrdered, h.Status)
	s.Equal("1000", s.balanceOf(holder))
}

// ===
// Release
// ===

func (s *HoldServiceSuite) TestRelease() {
	s.Run("stranger cannot release an unexpired hold", func() {
		s.hold(1, 100, time.Hour)
		_, err := s.service.ReleaseHold(s.ctx, stranger, token, domain.HoldID{1})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("notary release", func() {
		h, err := s.service.ReleaseHold(s.ctx, notary, token, domain.HoldID{1})
		s.Require().NoError(err)
		s.Equal(StatusReleasedByNotary, h.Status)
	})

	s.Run("recipient release", func() {
		s.hold(2, 100, time.Hour)
		h, err := s.service.ReleaseHold(s.ctx, recipient, token, domain.HoldID{2})
		s.Require().NoError(err)
		s.Equal(StatusReleasedByPayee, h.Status)
	})

	s.Run("anyone after expiry", func() {
		before := s.spendable()
		s.hold(3, 600, time.Hour)
		s.NotEqual(before, s.spendable())

		h, err := s.service.ReleaseHold(s.later(time.Hour+time.Second), stranger, token, domain.HoldID{3})
		s.Require().NoError(err)
		s.Equal(StatusReleasedOnExpiration, h.Status)
		s.Equal(before, s.spendable())
	})

	s.Run("expiry wins over notary", func() {
		s.hold(4, 10, time.Minute)
		h, err := s.service.ReleaseHold(s.later(time.Hour), notary, token, domain.HoldID{4})
		s.Require().NoError(err)
		s.Equal(StatusReleasedOnExpiration, h.Status)
	})

	s.Len(s.events.ListByAction(s.ctx, token, audit.EventHoldReleased), 4)
}

// ===
// Renewal
// ===

func (s *HoldServiceSuite) TestRenew() {
	s.hold(1, 100, time.Hour)
	id := domain.HoldID{1}

	s.Run("sender renews", func() {
		h, err := s.service.RenewHold(s.ctx, holder, token, id, 3*time.Hour, nil)
		s.Require().NoError(err)
		s.Equal(start.Add(3*time.Hour), h.Expiration)
		s.Equal("100", h.Value.String())
		s.Equal(StatusOrdered, h.Status)
	})

	s.Run("controller renews with a timestamp", func() {
		exp := start.Add(5 * time.Hour)
		h, err := s.service.RenewHoldWithExpirationDate(s.ctx, controller, token, id, exp, nil)
		s.Require().NoError(err)
		s.True(exp.Equal(h.Expiration))
	})

	s.Run("stranger is forbidden", func() {
		_, err := s.service.RenewHold(s.ctx, stranger, token, id, time.Hour, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("expired hold cannot be renewed", func() {
		_, err := s.service.RenewHold(s.later(6*time.Hour), holder, token, id, time.Hour, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})
}

// ===
// Terminal stability
// ===

func (s *HoldServiceSuite) TestTerminalStatesAreFinal() {
	s.hold(1, 100, 0)
	s.hold(2, 100, 0)
	_, err := s.service.ExecuteHold(s.ctx, notary, token, domain.HoldID{1}, domain.NewAmount(100), nil)
	s.Require().NoError(err)
	_, err = s.service.ReleaseHold(s.ctx, recipient, token, domain.HoldID{2})
	s.Require().NoError(err)

	for _, id := range []domain.HoldID{{1}, {2}} {
		_, err = s.service.ExecuteHold(s.ctx, notary, token, id, domain.NewAmount(1), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		_, err = s.service.ExecuteHoldAndKeepOpen(s.ctx, notary, token, id, domain.NewAmount(1), nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		_, err = s.service.ReleaseHold(s.ctx, notary, token, id)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		_, err = s.service.RenewHold(s.ctx, holder, token, id, time.Hour, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	}
}

func (s *HoldServiceSuite) TestRetrieveUnknownHold() {
	h, err := s.service.RetrieveHoldData(s.ctx, token, domain.HoldID{42})
	s.Require().NoError(err)
	s.Equal(StatusNonExistent, h.Status)
}

// ===
// Certificates
// ===

func (s *HoldServiceSuite) TestCertificateGatedCreation() {
	_, err := s.setups.UpdateFlags(s.ctx, owner, token, tokensetup.Flags{
		CertificateMode: tokensetup.CertificateModeNonce,
		HoldsActivated:  true,
	})
	s.Require().NoError(err)
	key, err := certificate.ParseIssuerKey("0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	s.Require().NoError(err)
	issuer := certificate.NewIssuer(key, testDomain)
	s.Require().NoError(s.certs.AddSigner(s.ctx, owner, token, issuer.Address()))

	req := s.request(1, 100)
	payload := CreatePayload(MethodHold, holder, req, DurationArg(time.Hour))

	s.Run("missing certificate", func() {
		_, err := s.service.Hold(s.ctx, holder, token, req, time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("certificate for another duration", func() {
		req := req
		req.Certificate = issuer.IssueNonce(token, holder, CreatePayload(MethodHold, holder, req, 60), start.Add(time.Hour), 0)
		_, err := s.service.Hold(s.ctx, holder, token, req, time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("valid certificate", func() {
		req := req
		req.Certificate = issuer.IssueNonce(token, holder, payload, start.Add(time.Hour), 0)
		_, err := s.service.Hold(s.ctx, holder, token, req, time.Hour)
		s.Require().NoError(err)

		n, err := s.certs.NonceOf(s.ctx, token, issuer.Address())
		s.Require().NoError(err)
		s.Equal(uint64(1), n)
	})

	s.Run("failed creation does not consume the certificate", func() {
		req := s.request(2, 10_000)
		req.Certificate = issuer.IssueNonce(token, holder, CreatePayload(MethodHold, holder, req, 0), start.Add(time.Hour), 1)
		_, err := s.service.Hold(s.ctx, holder, token, req, 0)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))

		n, err := s.certs.NonceOf(s.ctx, token, issuer.Address())
		s.Require().NoError(err)
		s.Equal(uint64(1), n)
	})
}
