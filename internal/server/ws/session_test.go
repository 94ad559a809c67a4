package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sonpham-org/poly/internal/domain"
	"github.com/sonpham-org/poly/internal/replay"
)

func sessionTrades(n int) []domain.Trade {
	trades := make([]domain.Trade, n)
	for i := range trades {
		trades[i] = domain.Trade{
			ID:        i,
			Price:     0.5,
			Size:      1,
			Timestamp: time.Unix(int64(100+i), 0),
		}
	}
	return trades
}

func loadedSession(t *testing.T, n int) *session {
	t.Helper()
	s := &session{
		id:     "test-session",
		slug:   "test-market",
		send:   make(chan []byte, sendBufferSize),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.ctrl = replay.NewController(s.pushFrame)

	token := s.ctrl.BeginLoad()
	require.NoError(t, s.ctrl.CompleteLoad(token, sessionTrades(n), nil))
	drain(s)
	return s
}

func drain(s *session) {
	for {
		select {
		case <-s.send:
		default:
			return
		}
	}
}

func decodeEnvelope(t *testing.T, data []byte) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestSession_CommandEmitsSingleFrame(t *testing.T) {
	s := loadedSession(t, 5)
	defer s.ctrl.Close()

	s.apply(command{Action: "step_forward"})

	require.Len(t, s.send, 1, "one command must produce exactly one outbound frame")
	e := decodeEnvelope(t, <-s.send)
	require.Equal(t, "frame", e.Type)
	require.Equal(t, 1, e.Frame.CurrentIndex)
}

func TestSession_ToggleEmitsSingleFrame(t *testing.T) {
	s := loadedSession(t, 5)
	defer s.ctrl.Close()

	s.apply(command{Action: "toggle"})

	require.Len(t, s.send, 1)
	e := decodeEnvelope(t, <-s.send)
	require.Equal(t, "frame", e.Type)
	require.True(t, e.Frame.IsPlaying)
}

func TestSession_UnknownActionPushesError(t *testing.T) {
	s := loadedSession(t, 3)
	defer s.ctrl.Close()

	s.apply(command{Action: "rewind"})

	require.Len(t, s.send, 1)
	e := decodeEnvelope(t, <-s.send)
	require.Equal(t, "error", e.Type)
	require.Contains(t, e.Error, "rewind")
}
