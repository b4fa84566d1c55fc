package api

import (
	"net/http"

	"fincrime_engine/internal/processor"
)

func (h *APIHandler) PatternsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	minAmount, err := queryFloat(r, "min_amount", processor.DefaultPatternMinAmount)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	maxDepth, err := queryInt(r, "max_depth", processor.DefaultPatternDepth)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", processor.MaxPatternLimit)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}

	patterns, err := h.engine.CircularPatterns(ctx, minAmount, maxDepth, limit)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendJSON(w, patterns, http.StatusOK)
}

func (h *APIHandler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	hours, err := queryInt(r, "timeframe_hours", processor.DefaultTimeframeHours)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}

	m, err := h.engine.WindowMetrics(ctx, hours)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendJSON(w, m, http.StatusOK)
}

func (h *APIHandler) NetworkHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	minAmount, err := queryFloat(r, "min_amount", processor.DefaultNetworkMinAmount)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}

	n, err := h.engine.Network(ctx, minAmount)
	if err != nil {
		h.sendEngineError(w, r, err)
		return
	}
	h.sendJSON(w, n, http.StatusOK)
}
