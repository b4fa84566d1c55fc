package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fincrime_engine/internal/domain"
	"fincrime_engine/internal/processor"
	"fincrime_engine/pkg/crypto"
)

type CreateTransferRequest struct {
	SourceID  string          `json:"source_id"`
	TargetID  string          `json:"target_id"`
	Amount    float64         `json:"amount"`
	Currency  domain.Currency `json:"currency"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

func (h *APIHandler) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.SourceID == "" || req.TargetID == "" || req.Currency == "" {
		h.sendError(w, "Missing required fields", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	var ts time.Time
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}

	if req.Signature != "" && h.signer != nil {
		if ts.IsZero() {
			h.sendError(w, "Signed requests must carry a timestamp", http.StatusBadRequest, "INVALID_REQUEST")
			return
		}
		err := h.signer.VerifyTransfer(req.SourceID, req.TargetID, req.Amount, string(req.Currency), ts.Unix(), req.Signature)
		if errors.Is(err, crypto.ErrInvalidSignature) {
			h.sendError(w, "Invalid signature", http.StatusUnauthorized, "INVALID_SIGNATURE")
			return
		}
	}

	t, err := h.engine.Transfers().CreateTransfer(ctx, processor.TransferRequest{
		SourceID:  req.SourceID,
		TargetID:  req.TargetID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Timestamp: ts,
	})
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}

	h.sendJSON(w, StatusResponse{Status: "success", ID: t.ID}, http.StatusCreated)
	h.logger.Info("Transfer accepted",
		slog.String("transfer_id", t.ID),
		slog.Float64("amount", t.Amount))
}

func (h *APIHandler) GetTransferHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	t, err := h.engine.Transfers().GetTransfer(ctx, r.PathValue("id"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendJSON(w, t, http.StatusOK)
}

func (h *APIHandler) SearchTransfersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var (
		filter domain.TransferFilter
		err    error
	)
	if filter.Start, err = queryTime(r, "start_date"); err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	if filter.End, err = queryTime(r, "end_date"); err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	if filter.MinAmount, err = queryFloat(r, "min_amount", 0); err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	if filter.Limit, err = queryInt(r, "limit", processor.MaxSearchResults); err != nil {
		h.sendEngineError(w, r, err)
		return
	}

	transfers, err := h.engine.SearchTransfers(ctx, filter)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendJSON(w, transfers, http.StatusOK)
}

func (h *APIHandler) RecentTransfersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	n, err := queryInt(r, "limit", processor.MaxSearchResults)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}

	transfers, err := h.engine.Transfers().RecentTransfers(ctx, n)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendJSON(w, transfers, http.StatusOK)
}
