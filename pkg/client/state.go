package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/framebase/framebase/pkg/state"
)

// StateSession is a live connection to the server's state channel. State
// broadcasts from other sessions arrive through Next; Update publishes
// this session's state to everyone else.
type StateSession struct {
	conn     *websocket.Conn
	messages chan state.Message

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
	readErr   error
}

// DialState connects to the state channel of the server at baseURL. The
// http and https schemes are swapped for their websocket counterparts.
func DialState(ctx context.Context, baseURL string) (*StateSession, error) {
	wsURL := baseURL
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	wsURL += "/state"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s := &StateSession{
		conn:     conn,
		messages: make(chan state.Message, 16),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *StateSession) readLoop() {
	defer close(s.messages)
	for {
		var msg state.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.readErr = err
			return
		}
		select {
		case s.messages <- msg:
		case <-s.done:
			return
		}
	}
}

// Update publishes st as the shared state. The server fans it out to
// every other session.
func (s *StateSession) Update(st *state.State) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(state.Message{Event: state.EventUpdate, State: st})
}

// Next returns the next message from the server, blocking until one
// arrives, ctx is done or the connection closes.
func (s *StateSession) Next(ctx context.Context) (state.Message, error) {
	select {
	case msg, ok := <-s.messages:
		if !ok {
			return state.Message{}, fmt.Errorf("state session closed: %w", s.readErr)
		}
		return msg, nil
	case <-ctx.Done():
		return state.Message{}, ctx.Err()
	}
}

// CurrentState asks the server for the shared state and waits for the
// reply. Broadcasts that arrive first are consumed and discarded, so use
// a dedicated session when both are needed.
func (s *StateSession) CurrentState(ctx context.Context) (*state.State, error) {
	s.writeMu.Lock()
	err := s.conn.WriteJSON(state.Message{Event: state.EventGetCurrent})
	s.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	for {
		msg, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		switch msg.Event {
		case state.EventState:
			return msg.State, nil
		case state.EventError:
			return nil, fmt.Errorf("state session: %s", msg.Error)
		}
	}
}

// Close tears down the connection. In-flight messages already queued can
// still be read from Next until the channel drains.
func (s *StateSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
