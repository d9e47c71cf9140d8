package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tokenhold/internal/eligibility"
	"tokenhold/internal/tokensetup"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	"tokenhold/pkg/platform/httputil"
	"tokenhold/pkg/requestcontext"
)

func (h *Handler) HandleGetSetup(w http.ResponseWriter, r *http.Request) {
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	setup, found, err := h.setups.Lookup(r.Context(), token)
	if err != nil {
		h.fail(w, r, "setup lookup failed", err)
		return
	}
	if !found {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "token is not registered"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, setup)
}

// HandlePutSetup registers the token on first call and replaces its flags
// afterwards. Controllers are only taken at registration.
func (h *Handler) HandlePutSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	_, found, err := h.setups.Lookup(ctx, token)
	if err != nil {
		h.fail(w, r, "setup lookup failed", err)
		return
	}
	if found {
		setup, err := h.setups.UpdateFlags(ctx, caller, token, req.Flags)
		if err != nil {
			h.fail(w, r, "setup update failed", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, setup)
		return
	}

	setup, err := h.setups.Register(ctx, caller, token, req.Flags, req.Controllers)
	if err != nil {
		h.fail(w, r, "token registration failed", err)
		return
	}
	h.logger.InfoContext(ctx, "token registered",
		"request_id", requestID,
		"token", token.String(),
		"caller", caller.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, setup)
}

func (h *Handler) HandleRenounceControl(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	setup, err := h.setups.RenounceControl(r.Context(), caller, token)
	if err != nil {
		h.fail(w, r, "renounce control failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, setup)
}

type setupMutation func(ctx context.Context, caller, token, addr domain.Address) (*tokensetup.Setup, error)

func (h *Handler) HandleAddController(w http.ResponseWriter, r *http.Request) {
	h.mutateController(w, r, h.setups.AddController)
}

func (h *Handler) HandleRemoveController(w http.ResponseWriter, r *http.Request) {
	h.mutateController(w, r, h.setups.RemoveController)
}

func (h *Handler) mutateController(w http.ResponseWriter, r *http.Request, apply setupMutation) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	controller, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	setup, err := apply(r.Context(), caller, token, controller)
	if err != nil {
		h.fail(w, r, "controller update failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, setup)
}

func (h *Handler) HandleListSigners(w http.ResponseWriter, r *http.Request) {
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	signers, err := h.signers.Signers(r.Context(), token)
	if err != nil {
		h.fail(w, r, "signer lookup failed", err)
		return
	}
	if signers == nil {
		signers = []domain.Address{}
	}
	httputil.WriteJSON(w, http.StatusOK, SignersResponse{Token: token, Signers: signers})
}

func (h *Handler) HandleAddSigner(w http.ResponseWriter, r *http.Request) {
	h.mutateSigner(w, r, h.signers.AddSigner)
}

func (h *Handler) HandleRemoveSigner(w http.ResponseWriter, r *http.Request) {
	h.mutateSigner(w, r, h.signers.RemoveSigner)
}

func (h *Handler) mutateSigner(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, caller, token, signer domain.Address) error) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	signer, ok := h.pathAddress(w, r, "addr")
	if !ok {
		return
	}
	if err := apply(r.Context(), caller, token, signer); err != nil {
		h.fail(w, r, "signer update failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleListEligibility(list eligibility.List) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := h.pathAddress(w, r, "token")
		if !ok {
			return
		}
		entries, err := h.eligibility.List(r.Context(), token, list)
		if err != nil {
			h.fail(w, r, "list lookup failed", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FromEntries(token, list, entries))
	}
}

func (h *Handler) HandleAddEligibility(list eligibility.List) http.HandlerFunc {
	return h.mutateEligibility(list, func(ctx context.Context, caller, token, addr domain.Address, list eligibility.List) error {
		return h.eligibility.Add(ctx, caller, token, addr, list)
	})
}

func (h *Handler) HandleRemoveEligibility(list eligibility.List) http.HandlerFunc {
	return h.mutateEligibility(list, func(ctx context.Context, caller, token, addr domain.Address, list eligibility.List) error {
		return h.eligibility.Remove(ctx, caller, token, addr, list)
	})
}

func (h *Handler) mutateEligibility(list eligibility.List, apply func(ctx context.Context, caller, token, addr domain.Address, list eligibility.List) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := h.caller(w, r)
		if !ok {
			return
		}
		token, ok := h.pathAddress(w, r, "token")
		if !ok {
			return
		}
		addr, ok := h.pathAddress(w, r, "addr")
		if !ok {
			return
		}
		if err := apply(r.Context(), caller, token, addr, list); err != nil {
			h.fail(w, r, "list update failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) HandleSetGranularity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	partition, err := domain.ParsePartition(chi.URLParam(r, "partition"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid partition"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[GranularityRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	setup, err := h.setups.SetPartitionGranularity(ctx, caller, token, partition, req.Granularity)
	if err != nil {
		h.fail(w, r, "granularity update failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, setup)
}
