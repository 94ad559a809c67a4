package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/pipeline"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
)

// PriceService defines what the replay handler needs for books, price
// history, and stored snapshots.
type PriceService interface {
	GetOrderbook(ctx context.Context, tokenID string) (domain.Orderbook, error)
	GetPriceHistory(ctx context.Context, tokenID string, q polymarket.HistoryQuery) ([]domain.PricePoint, error)
	ListSnapshots(ctx context.Context, slug string, opts domain.ListOpts) ([]domain.OrderbookSnapshot, error)
}

// TradeService defines what the replay handler needs for trade sequences.
type TradeService interface {
	GetSequence(ctx context.Context, conditionID, fallbackOutcome string) ([]domain.Trade, error)
}

// IngestRunner triggers one on-demand ingestion pass over tracked markets.
type IngestRunner interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

// ReplayHandler serves orderbooks, trade sequences, price history, stored
// snapshots, and the manual ingestion trigger.
type ReplayHandler struct {
	prices PriceService
	trades TradeService
	ingest IngestRunner
	logger *slog.Logger
}

func NewReplayHandler(prices PriceService, trades TradeService, ingest IngestRunner, logger *slog.Logger) *ReplayHandler {
	return &ReplayHandler{prices: prices, trades: trades, ingest: ingest, logger: logger}
}

// GetBook returns the live orderbook for one token, with derived best bid,
// best ask, spread, and midpoint.
// GET /api/book?token=<tokenID>
func (h *ReplayHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing token parameter")
		return
	}

	book, err := h.prices.GetOrderbook(r.Context(), tokenID)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: get book failed",
				slog.String("token", tokenID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, "failed to get orderbook")
		return
	}

	bestBid, bestAsk, spread, midpoint := domain.BookStats(book.Bids, book.Asks)
	writeJSON(w, http.StatusOK, map[string]any{
		"book":     book,
		"bestBid":  bestBid,
		"bestAsk":  bestAsk,
		"spread":   spread,
		"midpoint": midpoint,
	})
}

// GetTrades returns the normalized, replay-ordered trade sequence for a
// condition. The optional outcome parameter labels trades whose records
// carry no outcome of their own.
// GET /api/trades?condition=<conditionID>&outcome=YES
func (h *ReplayHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	conditionID := r.URL.Query().Get("condition")
	if conditionID == "" {
		writeError(w, http.StatusBadRequest, "missing condition parameter")
		return
	}
	outcome := r.URL.Query().Get("outcome")
	if outcome == "" {
		outcome = "YES"
	}

	trades, err := h.trades.GetSequence(r.Context(), conditionID, outcome)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: get trades failed",
				slog.String("condition_id", conditionID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, "failed to get trades")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades": trades,
		"count":  len(trades),
	})
}

// GetPriceHistory returns the sampled price series for one token.
// GET /api/price-history?token=<tokenID>&startTs=0&endTs=0&fidelity=10
func (h *ReplayHandler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenID := q.Get("token")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "missing token parameter")
		return
	}

	var query polymarket.HistoryQuery
	if v := q.Get("startTs"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			query.StartTs = n
		}
	}
	if v := q.Get("endTs"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			query.EndTs = n
		}
	}
	if v := q.Get("fidelity"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			query.Fidelity = n
		}
	}

	history, err := h.prices.GetPriceHistory(r.Context(), tokenID, query)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: price history failed",
				slog.String("token", tokenID),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, "failed to get price history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

// ListSnapshots returns persisted orderbook snapshots for a tracked market.
// GET /api/snapshots?slug=<slug>&limit=50&since=...&until=...
func (h *ReplayHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing slug parameter")
		return
	}

	snaps, err := h.prices.ListSnapshots(r.Context(), slug, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list snapshots failed",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to list snapshots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snaps,
		"count":     len(snaps),
	})
}

// TriggerIngest runs one ingestion pass immediately and returns its report.
// POST /api/ingest/trigger
func (h *ReplayHandler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	report, err := h.ingest.Run(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: ingest trigger failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "ingestion run failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}
