package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type BlacklistRequest struct {
	EntityID  string   `json:"entity_id"`
	Reason    string   `json:"reason,omitempty"`
	RiskScore *float64 `json:"risk_score,omitempty"`
}

type BlacklistResponse struct {
	BlacklistedEntities []string `json:"blacklisted_entities"`
	Count               int      `json:"count"`
}

func (h *APIHandler) RiskScoreHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	a, err := h.engine.RiskScore(ctx, r.PathValue("entity_id"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSignedJSON(w, a, http.StatusOK)
}

func (h *APIHandler) RiskMetricsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	rollup, err := h.engine.RiskMetrics(ctx)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendJSON(w, rollup, http.StatusOK)
}

func (h *APIHandler) AddToBlacklistHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	var req BlacklistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}
	if req.EntityID == "" {
		h.sendError(w, "Missing entity_id", http.StatusBadRequest, "INVALID_REQUEST")
		return
	}

	var score float64
	if req.RiskScore != nil {
		score = *req.RiskScore
	} else {
		a, err := h.engine.RiskScore(ctx, req.EntityID)
		if err != nil {
			h.sendEngineError(w, r, err)
			return
		}
		score = a.Score
	}

	if _, err := h.engine.AddToBlacklist(ctx, req.EntityID, req.Reason, score); err != nil {
		h.sendEngineError(w, r, err)
		return
	}

	h.sendSignedJSON(w, StatusResponse{
		Status:  "success",
		Message: fmt.Sprintf("Entity %s added to blacklist", req.EntityID),
	}, http.StatusCreated)
}

func (h *APIHandler) ListBlacklistHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	ids, err := h.engine.Blacklist(ctx)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSignedJSON(w, BlacklistResponse{BlacklistedEntities: ids, Count: len(ids)}, http.StatusOK)
}

func (h *APIHandler) GetBlacklistEntryHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	entry, err := h.engine.BlacklistEntry(ctx, r.PathValue("entity_id"))
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendSignedJSON(w, entry, http.StatusOK)
}
