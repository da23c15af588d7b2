package realtime

import (
	"github.com/amoylab/boom/internal/common/cnst"
	"go.uber.org/zap"
)

// Operator accumulates delivery flags and room filters for one emit
type Operator struct {
	nsp       *Namespace
	source    *Socket
	rooms     []string
	volatile  bool
	broadcast bool
	compress  bool
	binary    bool
}

func newOperator(nsp *Namespace, source *Socket) *Operator {
	return &Operator{
		nsp:      nsp,
		source:   source,
		compress: nsp.server.opts.Compression,
	}
}

// Volatile allows the event to be dropped when a client is not ready
func (o *Operator) Volatile() *Operator {
	o.volatile = true
	return o
}

// Broadcast sends to every matching socket except the source
func (o *Operator) Broadcast() *Operator {
	o.broadcast = true
	return o
}

func (o *Operator) Compress(on bool) *Operator {
	o.compress = on
	return o
}

// Binary sends the frame as a binary websocket message
func (o *Operator) Binary(on bool) *Operator {
	o.binary = on
	return o
}

// To narrows the targets to sockets that are also in room
func (o *Operator) To(room string) *Operator {
	o.rooms = append(o.rooms, room)
	return o
}

// Emit delivers the event and returns how many sockets it was queued for.
// An operator bound to a source socket without broadcast or rooms targets
// the source alone; otherwise the source is excluded from the targets.
func (o *Operator) Emit(event string, args ...any) (int, error) {
	var targets []*Socket
	switch {
	case o.source != nil && !o.source.Connected():
		return 0, cnst.ErrSocketNotFound
	case o.source != nil && !o.broadcast && len(o.rooms) == 0:
		targets = []*Socket{o.source}
	default:
		targets = o.nsp.targets(o.rooms, o.source)
	}

	data, err := encodePacket(&Packet{Type: PacketEvent, Event: event, Args: args})
	if err != nil {
		return 0, err
	}
	f := frame{data: data, binary: o.binary, compress: o.compress}

	sent := 0
	for _, s := range targets {
		if err := s.enqueue(f, o.volatile); err != nil {
			o.nsp.logger.Debug("emit skipped socket",
				zap.String("sid", s.id),
				zap.String("event", event),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}
