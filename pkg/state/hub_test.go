package state_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framebase/framebase/pkg/state"
	"github.com/framebase/framebase/pkg/store/memory"
	"github.com/framebase/framebase/pkg/store/storetest"
)

type hubFixture struct {
	hub *state.Hub
	srv *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	st := memory.New()
	storetest.Flowers(t, st)

	hub := state.NewHub(st, zerolog.Nop())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &hubFixture{hub: hub, srv: srv}
}

func (f *hubFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) state.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg state.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg state.Message) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// sync does a get_current_state round trip, proving the hub has
// registered the session before the test moves on.
func (f *hubFixture) sync(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	writeMessage(t, conn, state.Message{Event: state.EventGetCurrent})
	got := readMessage(t, conn)
	require.Equal(t, state.EventState, got.Event)
}

func TestUpdateBroadcastsToOtherSessions(t *testing.T) {
	f := newHubFixture(t)
	sender := f.dial(t)
	watcher := f.dial(t)
	f.sync(t, watcher)

	writeMessage(t, sender, state.Message{
		Event: state.EventUpdate,
		State: &state.State{DatasetName: "flowers", Selected: []string{"s1"}},
	})

	got := readMessage(t, watcher)
	assert.Equal(t, state.EventUpdate, got.Event)
	require.NotNil(t, got.State)
	assert.Equal(t, "flowers", got.State.DatasetName)
	assert.Equal(t, []string{"s1"}, got.State.Selected)

	// The sender got no echo: the first message it reads is the reply to
	// the request below, not a stray broadcast.
	writeMessage(t, sender, state.Message{Event: state.EventGetCurrent})
	reply := readMessage(t, sender)
	assert.Equal(t, state.EventState, reply.Event)
	assert.Equal(t, "flowers", reply.State.DatasetName)

	assert.Equal(t, "flowers", f.hub.CurrentState().DatasetName)
}

func TestGetCurrentStateStartsEmpty(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)

	writeMessage(t, conn, state.Message{Event: state.EventGetCurrent})
	got := readMessage(t, conn)
	assert.Equal(t, state.EventState, got.Event)
	require.NotNil(t, got.State)
	assert.Empty(t, got.State.DatasetName)
}

func TestUpdateUnknownDataset(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)

	writeMessage(t, conn, state.Message{
		Event: state.EventUpdate,
		State: &state.State{DatasetName: "ghost"},
	})

	got := readMessage(t, conn)
	assert.Equal(t, state.EventError, got.Event)
	assert.Contains(t, got.Error, "unknown dataset ghost")
	assert.Empty(t, f.hub.CurrentState().DatasetName, "a rejected update must not land")
}

func TestUpdateWithoutState(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)

	writeMessage(t, conn, state.Message{Event: state.EventUpdate})
	got := readMessage(t, conn)
	assert.Equal(t, state.EventError, got.Event)
	assert.Contains(t, got.Error, "update requires a state")
}

func TestUnimplementedEvents(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)

	for _, event := range []string{state.EventPrevious, state.EventGet} {
		writeMessage(t, conn, state.Message{Event: event})
		got := readMessage(t, conn)
		assert.Equal(t, state.EventError, got.Event)
		assert.Contains(t, got.Error, "not implemented")
	}

	writeMessage(t, conn, state.Message{Event: "bogus"})
	got := readMessage(t, conn)
	assert.Equal(t, state.EventError, got.Event)
	assert.Contains(t, got.Error, `unknown event "bogus"`)
}

func TestStateWithoutDatasetIsAccepted(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)
	watcher := f.dial(t)
	f.sync(t, watcher)

	writeMessage(t, conn, state.Message{
		Event: state.EventUpdate,
		State: &state.State{View: map[string]any{"zoom": 2}},
	})

	got := readMessage(t, watcher)
	assert.Equal(t, state.EventUpdate, got.Event)
	assert.EqualValues(t, 2, got.State.View["zoom"])
}
