package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamBuffer       = 4
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stream pushes summaries to websocket clients: the latest one on connect,
// then each new one as Publish is called.
type Stream struct {
	logger  *slog.Logger
	checker Checker

	mutex   sync.Mutex
	clients map[chan proxy.HealthSummary]struct{}
}

func NewStream(logger *slog.Logger, checker Checker) *Stream {
	return &Stream{
		logger:  logger,
		checker: checker,
		clients: make(map[chan proxy.HealthSummary]struct{}),
	}
}

// Publish fans summary out to connected clients. Slow clients miss updates
// rather than hold up the caller.
func (s *Stream) Publish(summary proxy.HealthSummary) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for ch := range s.clients {
		select {
		case ch <- summary:
		default:
			s.logger.Debug("Dropping summary for slow stream client")
		}
	}
}

// Clients returns the number of connected clients.
func (s *Stream) Clients() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.clients)
}

func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed",
			slog.String("from", extractClientIP(r)),
			slog.Any("err", err))
		return
	}

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	s.serve(conn, ch)
}

func (s *Stream) serve(conn *websocket.Conn, updates <-chan proxy.HealthSummary) {
	defer conn.Close()

	if err := writeSummary(conn, s.checker.Latest()); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case summary := <-updates:
			if err := writeSummary(conn, summary); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *Stream) subscribe() chan proxy.HealthSummary {
	ch := make(chan proxy.HealthSummary, streamBuffer)

	s.mutex.Lock()
	s.clients[ch] = struct{}{}
	s.mutex.Unlock()

	return ch
}

func (s *Stream) unsubscribe(ch chan proxy.HealthSummary) {
	s.mutex.Lock()
	delete(s.clients, ch)
	s.mutex.Unlock()
}

func writeSummary(conn *websocket.Conn, summary proxy.HealthSummary) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(summary)
}
