package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bobmcallan/tasktrace/internal/jobserr"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 60 * time.Second
	readLimit  = 512
)

// handleLogTrace accepts the bidirectional text channel at /log-trace. On
// accept, it registers a subscriber for the id in the query string under a
// freshly minted key and forwards every line the log fabric produces for
// that job as one text frame. Client->server frames are ignored; their
// absence (close) tears the subscription down.
func (s *Server) handleLogTrace(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "missing id query parameter")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("log-trace upgrade failed")
		return
	}

	key := uuid.NewString()
	if err := s.streamer.AddClient(id, key); err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("failed to register subscriber")
		conn.Close()
		return
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { conn.Close() }) }

	go s.writeLogTrace(conn, key, closeConn)
	s.readLogTrace(conn, key, closeConn)
}

// writeLogTrace forwards lines from the subscriber's queue to the
// connection until Get fails (the subscription was torn down) or a write
// fails.
func (s *Server) writeLogTrace(conn *websocket.Conn, key string, closeConn func()) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer closeConn()

	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		for {
			line, err := s.streamer.Get(key)
			if err != nil {
				errs <- err
				return
			}
			lines <- line
		}
	}()

	for {
		select {
		case line := <-lines:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case err := <-errs:
			if err != jobserr.ErrBroken && err != jobserr.ErrMissing {
				s.logger.Warn().Err(err).Str("key", key).Msg("log-trace subscriber error")
			}
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLogTrace reads (and discards) client frames purely to detect close;
// its return tears down the subscription.
func (s *Server) readLogTrace(conn *websocket.Conn, key string, closeConn func()) {
	defer func() {
		s.streamer.Delete(key)
		closeConn()
	}()

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
