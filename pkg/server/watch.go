package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/formsync-dev/formsync/pkg/formdata"
	"github.com/formsync-dev/formsync/pkg/middleware"
)

// maxWatchMessageSize caps inbound WebSocket messages. Watchers only
// listen, so anything beyond control frames is a misbehaving client.
const maxWatchMessageSize = 512

// watcher is one WebSocket subscriber of a form's diffs.
type watcher struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// stop closes the done channel once; the loops unwind from there.
func (w *watcher) stop() {
	w.once.Do(func() {
		close(w.done)
	})
}

// watchHub fans diff notifications out to a form's watchers.
type watchHub struct {
	logger *slog.Logger

	mu       sync.Mutex
	watchers map[*watcher]struct{}
	closed   bool
}

func newWatchHub(logger *slog.Logger) *watchHub {
	return &watchHub{
		logger:   logger,
		watchers: make(map[*watcher]struct{}),
	}
}

// add registers a watcher. It reports false after closeAll.
func (h *watchHub) add(w *watcher) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.watchers[w] = struct{}{}
	return true
}

func (h *watchHub) remove(w *watcher) {
	h.mu.Lock()
	delete(h.watchers, w)
	h.mu.Unlock()
}

// count returns the number of connected watchers.
func (h *watchHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// broadcast queues the diff for every watcher. The diff is marshaled once
// and the sends never block: a watcher whose queue is full is dropped
// rather than allowed to stall the others.
func (h *watchHub) broadcast(diff *formdata.DiffResult) {
	msg, err := json.Marshal(diff)
	if err != nil {
		h.logger.Error("diff marshal failed", "error", err)
		return
	}

	var slow []*watcher
	h.mu.Lock()
	for w := range h.watchers {
		select {
		case w.send <- msg:
		default:
			slow = append(slow, w)
		}
	}
	h.mu.Unlock()

	for _, w := range slow {
		h.logger.Warn("dropping slow watcher", "queued", len(w.send))
		w.stop()
	}
}

// closeAll disconnects every watcher and rejects future ones.
func (h *watchHub) closeAll() {
	h.mu.Lock()
	h.closed = true
	watchers := make([]*watcher, 0, len(h.watchers))
	for w := range h.watchers {
		watchers = append(watchers, w)
	}
	h.mu.Unlock()

	for _, w := range watchers {
		w.stop()
	}
}

// serveWatch runs one watcher connection until the peer goes away, the
// watcher falls behind, or the server shuts down. It blocks in the read
// loop; the write loop runs on its own goroutine.
func (s *Server) serveWatch(hub *watchHub, conn *websocket.Conn) {
	w := &watcher{
		conn: conn,
		send: make(chan []byte, s.config.WatchBuffer),
		done: make(chan struct{}),
	}

	if !hub.add(w) {
		conn.Close()
		return
	}

	middleware.IncWatchers()
	defer func() {
		hub.remove(w)
		middleware.DecWatchers()
		w.stop()
		conn.Close()
	}()

	go s.watchWriteLoop(w)
	s.watchReadLoop(w)
}

// watchReadLoop discards inbound frames and keeps the read deadline fresh
// from pongs. It returns when the connection drops.
func (s *Server) watchReadLoop(w *watcher) {
	w.conn.SetReadLimit(maxWatchMessageSize)
	w.conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(s.config.PongWait))
	})

	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Debug("watch read error", "error", err)
			}
			return
		}
	}
}

// watchWriteLoop pumps queued diffs and keepalive pings to the peer. On
// exit it closes the connection, which unblocks the read loop.
func (s *Server) watchWriteLoop(w *watcher) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case msg := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-w.done:
			w.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			w.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
