package tokensetup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"tokenhold/internal/ledger"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/audit/publisher"
	auditmemory "tokenhold/pkg/platform/audit/store/memory"
	"tokenhold/pkg/platform/tx"
)

var (
	token      = domain.MustParseAddress("0x00000000000000000000000000000000000000aa")
	owner      = domain.MustParseAddress("0x0000000000000000000000000000000000000001")
	controller = domain.MustParseAddress("0x0000000000000000000000000000000000000c01")
	stranger   = domain.MustParseAddress("0x0000000000000000000000000000000000000bad")
)

type SetupServiceSuite struct {
	suite.Suite
	ledger  *ledger.Memory
	store   *InMemoryStore
	events  *auditmemory.InMemoryStore
	service *Service
}

func TestSetupServiceSuite(t *testing.T) {
	suite.Run(t, new(SetupServiceSuite))
}

func (s *SetupServiceSuite) SetupTest() {
	s.ledger = ledger.NewMemory()
	s.Require().NoError(s.ledger.CreateToken(context.Background(), token, owner, domain.NewAmount(1)))
	s.store = NewInMemoryStore()
	s.events = auditmemory.NewInMemoryStore()

	var err error
	s.service, err = New(s.store, s.ledger, tx.NewRunner(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(publisher.NewPublisher(s.events)),
	)
	s.Require().NoError(err)
}

func (s *SetupServiceSuite) register(controllers ...domain.Address) *Setup {
	setup, err := s.service.Register(context.Background(), owner, token, Flags{HoldsActivated: true}, controllers)
	s.Require().NoError(err)
	return setup
}

func (s *SetupServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.ledger, tx.NewRunner())
		s.Error(err)
		s.Contains(err.Error(), "token setup store is required")
	})

	s.Run("nil owner reader returns error", func() {
		_, err := New(s.store, nil, tx.NewRunner())
		s.Error(err)
	})

	s.Run("nil runner returns error", func() {
		_, err := New(s.store, s.ledger, nil)
		s.Error(err)
	})
}

func (s *SetupServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("non-owner is forbidden", func() {
		_, err := s.service.Register(ctx, stranger, token, Flags{}, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("token unknown to the ledger", func() {
		other := domain.MustParseAddress("0x00000000000000000000000000000000000000ff")
		_, err := s.service.Register(ctx, owner, other, Flags{}, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("owner becomes controller by default", func() {
		setup := s.register()
		s.Equal([]domain.Address{owner}, setup.Controllers)
		s.True(setup.HoldsActivated)
		s.Len(s.events.ListByAction(ctx, token, audit.EventTokenRegistered), 1)
	})

	s.Run("second registration conflicts", func() {
		_, err := s.service.Register(ctx, owner, token, Flags{}, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *SetupServiceSuite) TestLookup() {
	ctx := context.Background()

	_, ok, err := s.service.Lookup(ctx, token)
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.service.Get(ctx, token)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.register(controller)
	setup, ok, err := s.service.Lookup(ctx, token)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal([]domain.Address{controller}, setup.Controllers)
}

func (s *SetupServiceSuite) TestAdministration() {
	ctx := context.Background()
	s.register(controller)

	s.Run("owner counts as admin without being a controller", func() {
		ok, err := s.service.IsAdmin(ctx, token, owner)
		s.Require().NoError(err)
		s.True(ok)

		isCtrl, err := s.service.IsController(ctx, token, owner)
		s.Require().NoError(err)
		s.False(isCtrl)
	})

	s.Run("stranger cannot change flags", func() {
		_, err := s.service.UpdateFlags(ctx, stranger, token, Flags{CertificateMode: CertificateModeSalt})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("controller changes flags", func() {
		setup, err := s.service.UpdateFlags(ctx, controller, token, Flags{CertificateMode: CertificateModeNonce, AllowlistActivated: true})
		s.Require().NoError(err)
		s.Equal(CertificateModeNonce, setup.CertificateMode)
		s.True(setup.AllowlistActivated)
		s.False(setup.HoldsActivated)
	})

	s.Run("add and remove controllers", func() {
		_, err := s.service.AddController(ctx, owner, token, stranger)
		s.Require().NoError(err)

		_, err = s.service.AddController(ctx, owner, token, stranger)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		setup, err := s.service.RemoveController(ctx, controller, token, stranger)
		s.Require().NoError(err)
		s.Equal([]domain.Address{controller}, setup.Controllers)

		_, err = s.service.RemoveController(ctx, controller, token, stranger)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("renounce requires membership", func() {
		_, err := s.service.RenounceControl(ctx, stranger, token)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		setup, err := s.service.RenounceControl(ctx, controller, token)
		s.Require().NoError(err)
		s.Empty(setup.Controllers)
	})

	s.Run("partition granularity set and cleared", func() {
		p, err := domain.PartitionFromLabel("issued")
		s.Require().NoError(err)

		setup, err := s.service.SetPartitionGranularity(ctx, owner, token, p, domain.NewAmount(10))
		s.Require().NoError(err)
		g, ok := setup.GranularityFor(p)
		s.True(ok)
		s.Equal("10", g.String())

		setup, err = s.service.SetPartitionGranularity(ctx, owner, token, p, domain.ZeroAmount)
		s.Require().NoError(err)
		_, ok = setup.GranularityFor(p)
		s.False(ok)
	})
}

func (s *SetupServiceSuite) TestStoreReturnsCopies() {
	ctx := context.Background()
	s.register(controller)

	setup, err := s.service.Get(ctx, token)
	s.Require().NoError(err)
	setup.Controllers[0] = stranger

	again, err := s.service.Get(ctx, token)
	s.Require().NoError(err)
	s.Equal(controller, again.Controllers[0])
}

func (s *SetupServiceSuite) TestFailedUnitRestoresSetup() {
	ctx := context.Background()
	s.register(controller)
	runner := tx.NewRunner()

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.service.AddController(ctx, owner, token, stranger); err != nil {
			return err
		}
		return errors.New("later step failed")
	})
	s.Require().Error(err)

	setup, err := s.service.Get(ctx, token)
	s.Require().NoError(err)
	s.Equal([]domain.Address{controller}, setup.Controllers)
	s.Empty(s.events.ListByAction(ctx, token, audit.EventControllerAdded), "no event for a rolled back change")
}

func TestParseCertificateMode(t *testing.T) {
	for in, want := range map[string]CertificateMode{"": CertificateModeNone, "NONE": CertificateModeNone, "nonce": CertificateModeNonce, " salt ": CertificateModeSalt} {
		got, err := ParseCertificateMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseCertificateMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseCertificateMode("weird"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
