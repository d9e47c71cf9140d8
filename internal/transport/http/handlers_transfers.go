package httptransport

import (
	"net/http"

	"tokenhold/internal/transfer"
	"tokenhold/pkg/domain"
	"tokenhold/pkg/platform/httputil"
	"tokenhold/pkg/requestcontext"
)

// operatorForm reports whether body names a holder other than the caller.
func operatorForm(caller domain.Address, body *TransferRequest) bool {
	return !body.From.IsZero() && body.From != caller
}

func (body *TransferRequest) toDomain() transfer.Request {
	return transfer.Request{
		Partition: body.Partition,
		From:      body.From,
		To:        body.To,
		Value:     body.Value,
		Data:      body.Data,
	}
}

// HandleCanTransfer reports the verdict the gate would reach without
// moving value or consuming a certificate.
func (h *Handler) HandleCanTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	token, ok := h.pathAddress(w, r, "token")
	if !ok {
		return
	}
	body, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	req := body.toDomain()
	var verdict transfer.Verdict
	var err error
	if operatorForm(caller, body) {
		req.Operator = caller
		verdict, err = h.gate.CanOperatorTransferByPartition(ctx, token, req)
	} else {
		req.From = caller
		verdict, err = h.gate.CanTransferByPartition(ctx, token, req)
	}
	if err != nil {
		h.fail(w, r, "transfer check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVerdict(verdict))
}

func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
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
	body, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	req := body.toDomain()
	var verdict transfer.Verdict
	var err error
	if operatorForm(caller, body) {
		verdict, err = h.gate.OperatorTransferByPartition(ctx, caller, token, req)
	} else {
		verdict, err = h.gate.TransferByPartition(ctx, caller, token, req)
	}
	if err != nil {
		h.logger.WarnContext(ctx, "transfer rejected",
			"request_id", requestID,
			"token", token.String(),
			"status", verdict.Status.String(),
		)
		h.fail(w, r, "transfer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVerdict(verdict))
}
