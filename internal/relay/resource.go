package relay

import (
	"github.com/amoylab/boom/internal/realtime"
)

// SocketResource describes the connection an event originates from
type SocketResource struct {
	Nsp          string              `json:"nsp"`
	ID           string              `json:"id"`
	PureID       string              `json:"pure_id"`
	Handshake    *realtime.Handshake `json:"handshake"`
	DecodedToken map[string]any      `json:"decoded_token"`
}

// EventResource describes the event itself. Lifecycle events only carry the
// fields relevant to them.
type EventResource struct {
	Name     string `json:"name"`
	Callback *bool  `json:"callback,omitempty"`
	Args     []any  `json:"args,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    any    `json:"error,omitempty"`
}

// Envelope is the body posted to the application
type Envelope struct {
	Socket SocketResource `json:"socket"`
	Event  EventResource  `json:"event"`
}

func newSocketResource(s *realtime.Socket) SocketResource {
	return SocketResource{
		Nsp:          s.Namespace().Name(),
		ID:           s.ID(),
		PureID:       s.PureID(),
		Handshake:    s.Handshake(),
		DecodedToken: s.DecodedToken(),
	}
}

func connectEnvelope(s *realtime.Socket) *Envelope {
	return &Envelope{Socket: newSocketResource(s), Event: EventResource{Name: eventConnect}}
}

func messageEnvelope(s *realtime.Socket, msg *realtime.Message) *Envelope {
	callback := msg.Ack != nil
	return &Envelope{
		Socket: newSocketResource(s),
		Event:  EventResource{Name: msg.Event, Callback: &callback, Args: msg.Args},
	}
}

func reasonEnvelope(s *realtime.Socket, name, reason string) *Envelope {
	return &Envelope{Socket: newSocketResource(s), Event: EventResource{Name: name, Reason: reason}}
}

func errorEnvelope(s *realtime.Socket, err error) *Envelope {
	return &Envelope{Socket: newSocketResource(s), Event: EventResource{Name: eventError, Error: err.Error()}}
}
