package httptransport

import (
	"context"
	"net/http"

	"tokenhold/internal/hold"
	"tokenhold/pkg/domain"
	dErrors "tokenhold/pkg/domain-errors"
	"tokenhold/pkg/platform/httputil"
	"tokenhold/pkg/requestcontext"
)

type holdKind int

const (
	kindHold holdKind = iota
	kindHoldFrom
	kindPreHold
)

// HandleCreateHold serves the three create routes; kind picks the service
// entry point and whether the body's sender is used.
func (h *Handler) HandleCreateHold(kind holdKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		req, ok := httputil.DecodeAndPrepare[CreateHoldRequest](w, r, h.logger, ctx, requestID)
		if !ok {
			return
		}
		if kind == kindHoldFrom && req.Sender.IsZero() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "sender is required"))
			return
		}

		in := req.toDomain()
		var created *hold.Hold
		var err error
		switch {
		case kind == kindHold && req.literal():
			created, err = h.holds.HoldWithExpirationDate(ctx, caller, token, in, req.timestamp())
		case kind == kindHold:
			created, err = h.holds.Hold(ctx, caller, token, in, req.duration())
		case kind == kindHoldFrom && req.literal():
			created, err = h.holds.HoldFromWithExpirationDate(ctx, caller, token, req.Sender, in, req.timestamp())
		case kind == kindHoldFrom:
			created, err = h.holds.HoldFrom(ctx, caller, token, req.Sender, in, req.duration())
		case req.literal():
			created, err = h.holds.PreHoldForWithExpirationDate(ctx, caller, token, in, req.timestamp())
		default:
			created, err = h.holds.PreHoldFor(ctx, caller, token, in, req.duration())
		}
		if err != nil {
			h.fail(w, r, "hold creation failed", err)
			return
		}

		h.logger.InfoContext(ctx, "hold created",
			"request_id", requestID,
			"token", token.String(),
			"hold_id", created.ID.String(),
			"caller", caller.String(),
		)
		httputil.WriteJSON(w, http.StatusCreated, created)
	}
}

func (h *Handler) HandleRetrieveHold(w http.ResponseWriter, r *http.Request) {
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	id, ok := h.pathHoldID(w, r)
	if !ok {
		return
	}
	got, err := h.holds.RetrieveHoldData(r.Context(), token, id)
	if err != nil {
		h.fail(w, r, "hold lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, got)
}

func (h *Handler) HandleExecuteHold(w http.ResponseWriter, r *http.Request) {
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
	id, ok := h.pathHoldID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ExecuteHoldRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	var updated *hold.Hold
	var err error
	if req.KeepOpen {
		updated, err = h.holds.ExecuteHoldAndKeepOpen(ctx, caller, token, id, req.Value, req.Secret)
	} else {
		updated, err = h.holds.ExecuteHold(ctx, caller, token, id, req.Value, req.Secret)
	}
	if err != nil {
		h.fail(w, r, "hold execution failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) HandleReleaseHold(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	id, ok := h.pathHoldID(w, r)
	if !ok {
		return
	}
	updated, err := h.holds.ReleaseHold(r.Context(), caller, token, id)
	if err != nil {
		h.fail(w, r, "hold release failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) HandleRenewHold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	id, ok := h.pathHoldID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RenewHoldRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	var updated *hold.Hold
	var err error
	if req.literal() {
		updated, err = h.holds.RenewHoldWithExpirationDate(ctx, caller, token, id, req.timestamp(), req.Certificate)
	} else {
		updated, err = h.holds.RenewHold(ctx, caller, token, id, req.duration(), req.Certificate)
	}
	if err != nil {
		h.fail(w, r, "hold renewal failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) HandleBalanceOnHold(w http.ResponseWriter, r *http.Request) {
	h.holderBalance(w, r, h.balances.BalanceOnHold, h.balances.BalanceOnHoldByPartition)
}

func (h *Handler) HandleSpendableBalance(w http.ResponseWriter, r *http.Request) {
	h.holderBalance(w, r, h.balances.SpendableBalanceOf, h.balances.SpendableBalanceOfByPartition)
}

type (
	holderTotal     func(ctx context.Context, token, holder domain.Address) (domain.Amount, error)
	holderPartition func(ctx context.Context, token domain.Address, partition domain.Partition, holder domain.Address) (domain.Amount, error)
)

func (h *Handler) holderBalance(w http.ResponseWriter, r *http.Request, total holderTotal, byPartition holderPartition) {
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	holder, ok := h.pathAddress(w, r, "holder")
	if !ok {
		return
	}
	partition, ok := h.queryPartition(w, r)
	if !ok {
		return
	}

	var value domain.Amount
	var err error
	if partition != nil {
		value, err = byPartition(r.Context(), token, *partition, holder)
	} else {
		value, err = total(r.Context(), token, holder)
	}
	if err != nil {
		h.fail(w, r, "balance lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Token: token, Holder: &holder, Partition: partition, Value: value})
}

func (h *Handler) HandleTotalSupplyOnHold(w http.ResponseWriter, r *http.Request) {
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	partition, ok := h.queryPartition(w, r)
	if !ok {
		return
	}

	var value domain.Amount
	var err error
	if partition != nil {
		value, err = h.balances.TotalSupplyOnHoldByPartition(r.Context(), token, *partition)
	} else {
		value, err = h.balances.TotalSupplyOnHold(r.Context(), token)
	}
	if err != nil {
		h.fail(w, r, "total on hold lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Token: token, Partition: partition, Value: value})
}
