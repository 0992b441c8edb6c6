package state

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/framebase/framebase/pkg/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 32
)

// Hub owns the shared state and the set of connected sessions.
type Hub struct {
	catalog  Catalog
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]bool
	current  State
	closed   bool
}

// NewHub returns a Hub validating dataset names against catalog.
func NewHub(catalog Catalog, log zerolog.Logger) *Hub {
	return &Hub{
		catalog: catalog,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Sessions come from the local app and from scripts, not
			// from a fixed web origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[*session]bool),
	}
}

// CurrentState returns a copy of the shared state.
func (h *Hub) CurrentState() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.clone()
}

// Close disconnects every session. The hub accepts no new sessions
// afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[*session]bool)
	h.closed = true
	h.mu.Unlock()

	for _, s := range sessions {
		close(s.send)
	}
}

// ServeHTTP upgrades the request and runs the session until either side
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("session upgrade failed")
		return
	}

	s := &session{hub: h, conn: conn, send: make(chan Message, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.sessions[s] = true
	n := len(h.sessions)
	h.mu.Unlock()

	h.log.Debug().Str("remote", conn.RemoteAddr().String()).Int("sessions", n).Msg("session connected")

	go s.writePump()
	s.readPump()
}

// unregister removes s, reporting whether it was still registered. The
// winner of the race closes the send channel.
func (h *Hub) unregister(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.sessions[s] {
		return false
	}
	delete(h.sessions, s)
	return true
}

// handle reacts to one inbound message from s.
func (h *Hub) handle(s *session, msg Message) {
	switch msg.Event {
	case EventUpdate:
		if msg.State == nil {
			h.send(s, errorMessage("update requires a state"))
			return
		}
		if err := h.checkDataset(msg.State.DatasetName); err != nil {
			h.send(s, errorMessage("%v", err))
			return
		}

		h.mu.Lock()
		h.current = msg.State.clone()
		peers := make([]*session, 0, len(h.sessions))
		for peer := range h.sessions {
			if peer != s {
				peers = append(peers, peer)
			}
		}
		h.mu.Unlock()

		out := h.CurrentState()
		for _, peer := range peers {
			h.send(peer, Message{Event: EventUpdate, State: &out})
		}

	case EventGetCurrent:
		current := h.CurrentState()
		h.send(s, Message{Event: EventState, State: &current})

	case EventPrevious, EventGet:
		h.send(s, errorMessage("event %q is not implemented", msg.Event))

	default:
		h.send(s, errorMessage("unknown event %q", msg.Event))
	}
}

// checkDataset verifies that the named dataset exists. An empty name is a
// state bound to no dataset and is always fine.
func (h *Hub) checkDataset(name string) error {
	if name == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()
	_, err := h.catalog.GetDataset(ctx, name)
	if errors.Is(err, store.ErrDatasetNotFound) {
		return errors.New("unknown dataset " + name)
	}
	return err
}

// send queues msg for s, dropping the session when its buffer is full.
func (h *Hub) send(s *session, msg Message) {
	select {
	case s.send <- msg:
	default:
		if h.unregister(s) {
			close(s.send)
			h.log.Warn().Str("remote", s.conn.RemoteAddr().String()).Msg("session dropped, send buffer full")
		}
	}
}

type session struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

func (s *session) readPump() {
	defer func() {
		if s.hub.unregister(s) {
			close(s.send)
		}
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.log.Debug().Err(err).Msg("session read failed")
			}
			return
		}
		s.hub.handle(s, msg)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
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
