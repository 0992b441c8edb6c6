// Package state synchronizes UI session state across connected clients.
// Every client holds a WebSocket to the Hub; one client updating the
// shared state fans the new state out to every other client.
package state

import (
	"context"
	"fmt"
	"time"

	"github.com/framebase/framebase/pkg/models"
)

// Events understood by the hub.
const (
	// EventUpdate replaces the shared state. The hub fans the same event
	// out to every other session.
	EventUpdate = "update"

	// EventGetCurrent asks the hub for the shared state as it stands.
	EventGetCurrent = "get_current_state"

	// EventState carries the shared state back to a session that asked.
	EventState = "state"

	// EventError carries a failure back to the session that caused it.
	EventError = "error"

	// EventPrevious and EventGet are recognized but not implemented.
	EventPrevious = "previous"
	EventGet      = "get"
)

// State is the shared session state. The view is deliberately opaque to
// the server; only the dataset name is validated.
type State struct {
	DatasetName string         `json:"dataset_name,omitempty"`
	View        map[string]any `json:"view,omitempty"`
	Selected    []string       `json:"selected,omitempty"`
}

// clone returns a copy that shares nothing with s.
func (s State) clone() State {
	out := State{DatasetName: s.DatasetName}
	if s.View != nil {
		out.View = make(map[string]any, len(s.View))
		for k, v := range s.View {
			out.View[k] = v
		}
	}
	if s.Selected != nil {
		out.Selected = append([]string(nil), s.Selected...)
	}
	return out
}

// Message is the wire envelope for session traffic in both directions.
type Message struct {
	Event string `json:"event"`
	State *State `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

func errorMessage(format string, args ...any) Message {
	return Message{Event: EventError, Error: fmt.Sprintf(format, args...)}
}

// catalogTimeout bounds the dataset lookup performed for update events.
const catalogTimeout = 5 * time.Second

// Catalog is the slice of the store the hub needs: it only ever checks
// that a named dataset exists.
type Catalog interface {
	GetDataset(ctx context.Context, name string) (*models.DatasetDescriptor, error)
}
