package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/platform/polymarket"
	"github.com/sonpham-org/poly/internal/replay"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per session.
	sendBufferSize = 256

	// loadTimeout bounds the upstream fetches performed on connect.
	loadTimeout = 30 * time.Second
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks are enforced by the CORS middleware for the REST
		// surface; the socket accepts any origin.
		return true
	},
}

// MarketResolver resolves a tracked market slug to its identifiers.
type MarketResolver interface {
	GetTracked(ctx context.Context, slug string) (domain.TrackedMarket, error)
}

// TradeSource loads the normalized trade sequence for a condition.
type TradeSource interface {
	GetSequence(ctx context.Context, conditionID, fallbackOutcome string) ([]domain.Trade, error)
}

// PriceSource loads the sampled price series for a token.
type PriceSource interface {
	GetPriceHistory(ctx context.Context, tokenID string, q polymarket.HistoryQuery) ([]domain.PricePoint, error)
}

// ReplayHandler upgrades connections on /ws/replay/{slug} and drives one
// playback controller per connection. Sessions are independent: each client
// owns its own cursor, speed, and play state.
type ReplayHandler struct {
	markets MarketResolver
	trades  TradeSource
	prices  PriceSource
	logger  *slog.Logger
}

func NewReplayHandler(markets MarketResolver, trades TradeSource, prices PriceSource, logger *slog.Logger) *ReplayHandler {
	return &ReplayHandler{markets: markets, trades: trades, prices: prices, logger: logger}
}

// command is a JSON control message from the client.
type command struct {
	Action string  `json:"action"` // toggle, step_forward, step_back, seek, speed
	Index  int     `json:"index"`  // seek target
	Speed  float64 `json:"speed"`  // speed multiplier
}

// envelope wraps every outbound message with a type tag.
type envelope struct {
	Type      string        `json:"type"` // loaded, frame, error
	SessionID string        `json:"sessionId,omitempty"`
	Slug      string        `json:"slug,omitempty"`
	Error     string        `json:"error,omitempty"`
	Frame     *replay.Frame `json:"frame,omitempty"`
}

// session is one client connection with its private playback controller.
type session struct {
	id     string
	slug   string
	conn   *websocket.Conn
	ctrl   *replay.Controller
	send   chan []byte
	logger *slog.Logger
}

// HandleReplay upgrades the request and starts a playback session for the
// tracked market named in the path.
// GET /ws/replay/{slug}
func (h *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		http.Error(w, "missing market slug", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	s := &session{
		id:   uuid.New().String(),
		slug: slug,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	s.logger = h.logger.With(slog.String("session_id", s.id), slog.String("slug", slug))
	s.ctrl = replay.NewController(s.pushFrame)

	go s.writePump()
	go s.readPump()

	// Load in its own goroutine so a slow upstream never blocks the pumps.
	// The generation token discards this load if the client reconnects the
	// controller to different data in the meantime.
	go h.load(s)
}

// load fetches the trade sequence and price history, then hands both to the
// session's controller.
func (h *ReplayHandler) load(s *session) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	token := s.ctrl.BeginLoad()

	tracked, err := h.markets.GetTracked(ctx, s.slug)
	if err != nil {
		s.pushError("unknown market: " + s.slug)
		return
	}

	trades, err := h.trades.GetSequence(ctx, tracked.ConditionID, "YES")
	if err != nil {
		s.pushError("failed to load trades")
		return
	}

	prices, err := h.prices.GetPriceHistory(ctx, tracked.TokenIDYes, polymarket.HistoryQuery{})
	if err != nil {
		// Playback works without the price series; log and continue.
		s.logger.Warn("ws: price history unavailable", slog.String("error", err.Error()))
		prices = nil
	}

	if err := s.ctrl.CompleteLoad(token, trades, prices); err != nil {
		s.logger.Debug("ws: stale load discarded")
		return
	}

	f := s.ctrl.Frame()
	s.push(envelope{Type: "loaded", SessionID: s.id, Slug: s.slug, Frame: &f})
}

// pushFrame forwards autoplay ticks to the client.
func (s *session) pushFrame(f replay.Frame) {
	s.push(envelope{Type: "frame", Frame: &f})
}

func (s *session) pushError(msg string) {
	s.push(envelope{Type: "error", Error: msg})
}

func (s *session) push(e envelope) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	select {
	case s.send <- data:
	default:
		// Send buffer full; the slow client misses this frame.
		s.logger.Warn("ws: dropping message for slow client")
	}
}

// readPump reads control commands until the connection closes.
func (s *session) readPump() {
	// Closing the connection (not the send channel) unblocks writePump;
	// the controller may still fire one last tick into the buffered channel.
	defer func() {
		s.ctrl.Close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("ws: unexpected close error", slog.String("error", err.Error()))
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			s.pushError("invalid command")
			continue
		}
		s.apply(cmd)
	}
}

// apply executes one control command. The controller emits the resulting
// frame through pushFrame on every state transition, so there is nothing to
// echo here.
func (s *session) apply(cmd command) {
	switch cmd.Action {
	case "toggle":
		s.ctrl.TogglePlay()
	case "step_forward":
		s.ctrl.StepForward()
	case "step_back":
		s.ctrl.StepBack()
	case "seek":
		s.ctrl.Seek(cmd.Index)
	case "speed":
		s.ctrl.SetSpeed(cmd.Speed)
	default:
		s.pushError("unknown action: " + cmd.Action)
	}
}

// writePump drains the send channel and keeps the connection alive with
// periodic pings.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
