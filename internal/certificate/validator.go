package certificate

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	audit "tokenhold/pkg/platform/audit"
	"tokenhold/pkg/platform/sentinel"
	"tokenhold/pkg/platform/tx"
	"tokenhold/pkg/requestcontext"
)

// SetupReader is the slice of the token registry the validator reads.
type SetupReader interface {
	Lookup(ctx context.Context, token domain.Address) (*tokensetup.Setup, bool, error)
	IsAdmin(ctx context.Context, token, addr domain.Address) (bool, error)
}

// Recoverer recovers a signer from a digest and r‖s‖v signature.
type Recoverer interface {
	Recover(digest [32]byte, sig []byte) (domain.Address, bool)
}

// Rejection reasons carried in audit events and error messages.
const (
	reasonMissing       = "certificate required"
	reasonMalformed     = "certificate malformed"
	reasonBadSignature  = "certificate signature invalid"
	reasonUnknownSigner = "certificate signer not registered"
	reasonExpired       = "certificate expired"
	reasonNonce         = "certificate nonce mismatch"
	reasonSaltUsed      = "certificate salt already used"
)

type Validator struct {
	store          Store
	setups         SetupReader
	verifier       Recoverer
	runner         TxRunner
	domain         Domain
	logger         *slog.Logger
	auditPublisher audit.Emitter
	tracer         trace.Tracer
}

type Option func(*Validator)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Emitter) Option {
	return func(v *Validator) {
		v.auditPublisher = publisher
	}
}

func WithDomain(d Domain) Option {
	return func(v *Validator) {
		v.domain = d
	}
}

func New(store Store, setups SetupReader, verifier Recoverer, runner TxRunner, opts ...Option) (*Validator, error) {
	if store == nil {
		return nil, errors.New("certificate store is required")
	}
	if setups == nil {
		return nil, errors.New("token setup reader is required")
	}
	if verifier == nil {
		return nil, errors.New("signature verifier is required")
	}
	if runner == nil {
		return nil, errors.New("tx runner is required")
	}
	v := &Validator{
		store:    store,
		setups:   setups,
		verifier: verifier,
		runner:   runner,
		tracer:   otel.Tracer("tokenhold/certificate"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Domain returns the deployment domain certificates must be bound to.
func (v *Validator) Domain() Domain {
	return v.domain
}

// verdict is the outcome of evaluating a certificate. signer is zero when no
// replay state needs to change (mode None, signer self-authorisation).
type verdict struct {
	mode   tokensetup.CertificateMode
	signer domain.Address
	cert   Certificate
	reason string
}

// Check evaluates the certificate policy without consuming the certificate.
func (v *Validator) Check(ctx context.Context, token, caller domain.Address, payload, raw []byte) error {
	_, err := v.evaluate(ctx, token, caller, payload, raw)
	return err
}

// Consume evaluates the certificate and, on success, advances the signer's
// nonce or records the salt so the certificate cannot authorise another call.
// Must run inside a unit of work.
func (v *Validator) Consume(ctx context.Context, token, caller domain.Address, payload, raw []byte) error {
	ctx, span := v.tracer.Start(ctx, "certificate.Consume", trace.WithAttributes(
		attribute.String("token", token.String()),
		attribute.String("caller", caller.String()),
	))
	defer span.End()

	vd, err := v.evaluate(ctx, token, caller, payload, raw)
	if err != nil {
		if vd.reason != "" {
			audit.Log(ctx, v.logger, v.auditPublisher, audit.EventCertificateRejected, audit.Event{
				Token:  token,
				Actor:  caller,
				Reason: vd.reason,
			})
		}
		span.RecordError(err)
		return err
	}
	if vd.signer.IsZero() {
		return nil
	}

	switch vd.mode {
	case tokensetup.CertificateModeNonce:
		nonce, _ := vd.cert.Nonce()
		if err := v.store.IncrementNonce(ctx, token, vd.signer, nonce); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeUnauthorized, reasonNonce)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance certificate nonce")
		}
	case tokensetup.CertificateModeSalt:
		if err := v.store.UseSalt(ctx, token, vd.signer, vd.cert.Replay, requestcontext.Now(ctx)); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Wrap(err, dErrors.CodeConflict, "certificate salt collision")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record certificate salt")
		}
	}

	tx.AfterCommit(ctx, func(ctx context.Context) {
		audit.Log(ctx, v.logger, v.auditPublisher, audit.EventCertificateConsumed, audit.Event{
			Token:   token,
			Actor:   caller,
			Subject: vd.signer,
			Reason:  vd.mode.String(),
		})
	})
	return nil
}

func (v *Validator) evaluate(ctx context.Context, token, caller domain.Address, payload, raw []byte) (verdict, error) {
	setup, ok, err := v.setups.Lookup(ctx, token)
	if err != nil {
		return verdict{}, err
	}
	if !ok {
		return verdict{}, dErrors.New(dErrors.CodeNotFound, "token not registered")
	}
	vd := verdict{mode: setup.CertificateMode}
	if vd.mode == tokensetup.CertificateModeNone {
		return vd, nil
	}

	if len(raw) == 0 {
		isSigner, err := v.store.IsSigner(ctx, token, caller)
		if err != nil {
			return vd, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate signers")
		}
		if isSigner {
			return vd, nil
		}
		return v.reject(vd, reasonMissing)
	}

	cert, err := Decode(vd.mode, raw)
	if err != nil {
		return v.reject(vd, reasonMalformed)
	}
	vd.cert = cert

	digest := Digest(v.domain.Separator(token), caller, token, payload, cert.Expiration, cert.Replay)
	signer, ok := v.verifier.Recover(digest, cert.Signature[:])
	if !ok {
		return v.reject(vd, reasonBadSignature)
	}
	isSigner, err := v.store.IsSigner(ctx, token, signer)
	if err != nil {
		return vd, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate signers")
	}
	if !isSigner {
		return v.reject(vd, reasonUnknownSigner)
	}
	if cert.Expired(requestcontext.Now(ctx)) {
		return v.reject(vd, reasonExpired)
	}

	switch vd.mode {
	case tokensetup.CertificateModeNonce:
		supplied, fits := cert.Nonce()
		current, err := v.store.Nonce(ctx, token, signer)
		if err != nil {
			return vd, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate nonce")
		}
		if !fits || supplied != current {
			return v.reject(vd, reasonNonce)
		}
	case tokensetup.CertificateModeSalt:
		used, err := v.store.IsSaltUsed(ctx, token, signer, cert.Replay)
		if err != nil {
			return vd, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate salts")
		}
		if used {
			return v.reject(vd, reasonSaltUsed)
		}
	}
	vd.signer = signer
	return vd, nil
}

func (v *Validator) reject(vd verdict, reason string) (verdict, error) {
	vd.reason = reason
	return vd, dErrors.New(dErrors.CodeUnauthorized, reason)
}

// AddSigner registers signer for token. Existing signers, controllers and
// the token owner may add signers.
func (v *Validator) AddSigner(ctx context.Context, caller, token, signer domain.Address) error {
	if signer.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "signer address is required")
	}
	return v.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := v.authorizeAdmin(ctx, caller, token); err != nil {
			return err
		}
		if err := v.store.AddSigner(ctx, token, signer, requestcontext.Now(ctx)); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "address is already a certificate signer")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to add certificate signer")
		}
		v.afterCommit(ctx, audit.EventCertificateSignerAdded, token, caller, signer)
		return nil
	})
}

func (v *Validator) RemoveSigner(ctx context.Context, caller, token, signer domain.Address) error {
	return v.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := v.authorizeAdmin(ctx, caller, token); err != nil {
			return err
		}
		if err := v.store.RemoveSigner(ctx, token, signer); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "address is not a certificate signer")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove certificate signer")
		}
		v.afterCommit(ctx, audit.EventCertificateSignerRemoved, token, caller, signer)
		return nil
	})
}

func (v *Validator) authorizeAdmin(ctx context.Context, caller, token domain.Address) error {
	isSigner, err := v.store.IsSigner(ctx, token, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate signers")
	}
	if isSigner {
		return nil
	}
	isAdmin, err := v.setups.IsAdmin(ctx, token, caller)
	if err != nil {
		return err
	}
	if !isAdmin {
		return dErrors.New(dErrors.CodeForbidden, "caller cannot manage certificate signers")
	}
	return nil
}

func (v *Validator) afterCommit(ctx context.Context, action audit.AuditEvent, token, actor, subject domain.Address) {
	tx.AfterCommit(ctx, func(ctx context.Context) {
		audit.Log(ctx, v.logger, v.auditPublisher, action, audit.Event{Token: token, Actor: actor, Subject: subject})
	})
}

// NonceOf is the next nonce signer must use for token.
func (v *Validator) NonceOf(ctx context.Context, token, signer domain.Address) (uint64, error) {
	n, err := v.store.Nonce(ctx, token, signer)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate nonce")
	}
	return n, nil
}

func (v *Validator) IsSaltUsed(ctx context.Context, token, signer domain.Address, salt [32]byte) (bool, error) {
	used, err := v.store.IsSaltUsed(ctx, token, signer, salt)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate salts")
	}
	return used, nil
}

func (v *Validator) Signers(ctx context.Context, token domain.Address) ([]domain.Address, error) {
	signers, err := v.store.Signers(ctx, token)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate signers")
	}
	return signers, nil
}

// TxRunner opens the unit of work signer administration runs in.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
