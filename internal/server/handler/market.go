package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
)

// MarketService defines the methods the market handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type MarketService interface {
	ListMarkets(ctx context.Context, query polymarket.MarketQuery) ([]domain.Market, error)
	GetBySlug(ctx context.Context, slug string) (domain.Market, error)
	Track(ctx context.Context, slug string) (domain.TrackedMarket, error)
	Untrack(ctx context.Context, slug string) error
}

// MarketHandler serves market discovery and tracking endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

// listMarketsResponse wraps the list endpoint output with its paging echo.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets proxies the upstream market catalogue with pagination and
// optional filters.
// GET /api/markets?limit=50&offset=0&active=true&tag=politics&q=election
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := parseListOpts(r)

	query := polymarket.MarketQuery{
		Limit:     opts.Limit,
		Offset:    opts.Offset,
		TagSlug:   q.Get("tag"),
		Order:     q.Get("order"),
		TextQuery: q.Get("q"),
	}
	if v := q.Get("active"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			query.Active = &b
		}
	}
	if v := q.Get("closed"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			query.Closed = &b
		}
	}
	if v := q.Get("ascending"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			query.Ascending = &b
		}
	}

	markets, err := h.markets.ListMarkets(r.Context(), query)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Limit:   query.Limit,
		Offset:  query.Offset,
	})
}

// GetMarket returns a single market by slug.
// GET /api/markets/{slug}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing market slug")
		return
	}

	market, err := h.markets.GetBySlug(r.Context(), slug)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: get market failed",
				slog.String("slug", slug),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// trackRequest is the body for POST /api/track.
type trackRequest struct {
	Slug string `json:"slug"`
}

// Track registers a market for periodic snapshot and trade ingestion.
// POST /api/track
func (h *MarketHandler) Track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Slug == "" {
		writeError(w, http.StatusBadRequest, "missing market slug")
		return
	}

	tracked, err := h.markets.Track(r.Context(), req.Slug)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: track market failed",
				slog.String("slug", req.Slug),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, "failed to track market")
		return
	}

	writeJSON(w, http.StatusCreated, tracked)
}

// Untrack deactivates a tracked market. Its history is retained.
// DELETE /api/track/{slug}
func (h *MarketHandler) Untrack(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing market slug")
		return
	}

	if err := h.markets.Untrack(r.Context(), slug); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: untrack market failed",
				slog.String("slug", slug),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, "failed to untrack market")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "untracked", "slug": slug})
}
