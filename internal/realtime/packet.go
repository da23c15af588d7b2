package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/amoylab/boom/pkg/utils"
)

// PacketType identifies a frame on the wire
type PacketType string

const (
	PacketConnect    PacketType = "connect"
	PacketEvent      PacketType = "event"
	PacketAck        PacketType = "ack"
	PacketError      PacketType = "error"
	PacketDisconnect PacketType = "disconnect"
)

// Packet is the JSON frame exchanged with clients.
// A client requests an acknowledgement by setting ID on an event packet;
// the server answers with an ack packet carrying the same ID.
type Packet struct {
	Type  PacketType `json:"type"`
	Nsp   string     `json:"nsp,omitempty"`
	Sid   string     `json:"sid,omitempty"`
	Event string     `json:"event,omitempty"`
	Args  []any      `json:"args,omitempty"`
	ID    *uint64    `json:"id,omitempty"`
	Data  any        `json:"data,omitempty"`
}

var errEmptyEvent = errors.New("event packet without event name")

var reservedEvents = map[string]struct{}{
	cnst.EventConnect:       {},
	cnst.EventDisconnect:    {},
	cnst.EventDisconnecting: {},
	cnst.EventError:         {},
}

// reserved reports whether an inbound event name would land on a lifecycle
// route once slugified, ignoring case
func reserved(event string) bool {
	_, ok := reservedEvents[strings.ToLower(utils.Slugify(event))]
	return ok
}

func decodePacket(data []byte) (*Packet, error) {
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed packet: %w", err)
	}
	switch p.Type {
	case PacketEvent:
		if p.Event == "" {
			return nil, errEmptyEvent
		}
		if reserved(p.Event) {
			return nil, fmt.Errorf("%w: %q", cnst.ErrReservedEvent, p.Event)
		}
	case PacketDisconnect:
	default:
		return nil, fmt.Errorf("unexpected packet type %q", p.Type)
	}
	return &p, nil
}

func encodePacket(p *Packet) ([]byte, error) {
	return json.Marshal(p)
}
