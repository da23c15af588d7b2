package realtime

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message is an inbound event. Ack is nil unless the client asked for an
// acknowledgement and only the first call is sent.
type Message struct {
	Event string
	Args  []any
	Ack   func(args ...any)
}

// PacketMiddleware intercepts inbound events before they reach the handlers
// registered with On. Calling next(nil) continues the chain, next(err) sends
// an error packet to the client and stops it. Not calling next at all
// consumes the event.
type PacketMiddleware func(msg *Message, next func(error))

var errSlowConsumer = errors.New("send buffer full")

type frame struct {
	data     []byte
	binary   bool
	compress bool
}

// Socket is one client connection attached to a namespace
type Socket struct {
	id        string
	pureID    string
	nsp       *Namespace
	server    *Server
	conn      *websocket.Conn
	handshake *Handshake
	claims    map[string]any
	logger    *zap.Logger

	outbox    chan frame
	done      chan struct{}
	closeOnce sync.Once
	connected atomic.Bool

	mu              sync.RWMutex
	handlers        map[string][]func(*Message)
	middlewares     []PacketMiddleware
	onDisconnecting []func(reason string)
	onDisconnect    []func(reason string)
	onError         []func(error)
}

func newSocket(server *Server, nsp *Namespace, conn *websocket.Conn, hs *Handshake, claims map[string]any) *Socket {
	pureID := uuid.NewString()
	id := nsp.fullID(pureID)
	return &Socket{
		id:        id,
		pureID:    pureID,
		nsp:       nsp,
		server:    server,
		conn:      conn,
		handshake: hs,
		claims:    claims,
		logger:    nsp.logger.With(zap.String("sid", id)),
		outbox:    make(chan frame, server.opts.SendBuffer),
		done:      make(chan struct{}),
		handlers:  make(map[string][]func(*Message)),
	}
}

func (s *Socket) ID() string                   { return s.id }
func (s *Socket) PureID() string               { return s.pureID }
func (s *Socket) Namespace() *Namespace        { return s.nsp }
func (s *Socket) Handshake() *Handshake        { return s.handshake }
func (s *Socket) DecodedToken() map[string]any { return s.claims }
func (s *Socket) Connected() bool              { return s.connected.Load() }

// Rooms returns the rooms the socket is currently in
func (s *Socket) Rooms() []string {
	return s.nsp.roomsOf(s.id)
}

func (s *Socket) Join(rooms ...string) error {
	return s.nsp.Join(s.id, rooms...)
}

func (s *Socket) Leave(room string) error {
	return s.nsp.Leave(s.id, room)
}

// On registers a handler for an inbound event
func (s *Socket) On(event string, fn func(*Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], fn)
}

// Use appends an inbound packet middleware
func (s *Socket) Use(mw PacketMiddleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, mw)
}

// OnDisconnecting handlers run while the socket still holds its rooms
func (s *Socket) OnDisconnecting(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnecting = append(s.onDisconnecting, fn)
}

// OnDisconnect handlers run after the socket left the namespace
func (s *Socket) OnDisconnect(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = append(s.onDisconnect, fn)
}

// OnError handlers run for protocol errors that do not close the socket
func (s *Socket) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = append(s.onError, fn)
}

// Emit sends an event to this socket only
func (s *Socket) Emit(event string, args ...any) error {
	return s.send(&Packet{Type: PacketEvent, Event: event, Args: args}, false, s.server.opts.Compression)
}

// Operator starts an emit that originates from this socket
func (s *Socket) Operator() *Operator {
	return newOperator(s.nsp, s)
}

// Disconnect closes the socket from the server side
func (s *Socket) Disconnect() {
	s.close(cnst.ReasonServerDisconnect, websocket.CloseNormalClosure)
}

func (s *Socket) send(p *Packet, volatile, compress bool) error {
	data, err := encodePacket(p)
	if err != nil {
		return err
	}
	return s.enqueue(frame{data: data, compress: compress}, volatile)
}

// enqueue hands a frame to the write loop. Volatile frames are dropped when
// the buffer is full; reliable frames wait up to the write timeout after
// which the socket is considered stuck and disconnected.
func (s *Socket) enqueue(f frame, volatile bool) error {
	select {
	case <-s.done:
		return cnst.ErrSocketClosed
	default:
	}

	if volatile {
		select {
		case s.outbox <- f:
		case <-s.done:
			return cnst.ErrSocketClosed
		default:
			s.logger.Debug("dropped volatile packet")
		}
		return nil
	}

	timer := time.NewTimer(s.server.opts.WriteTimeout)
	defer timer.Stop()
	select {
	case s.outbox <- f:
		return nil
	case <-s.done:
		return cnst.ErrSocketClosed
	case <-timer.C:
		s.logger.Warn("disconnecting slow consumer")
		go s.close(cnst.ReasonTransportError, websocket.CloseTryAgainLater)
		return errSlowConsumer
	}
}

// reject refuses a socket whose connect middleware failed
func (s *Socket) reject(err error) {
	s.logger.Debug("socket rejected", zap.Error(err))
	if data, encErr := encodePacket(&Packet{Type: PacketError, Data: err.Error()}); encErr == nil {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.opts.WriteTimeout))
		_ = s.conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""),
		time.Now().Add(s.server.opts.WriteTimeout))
	_ = s.conn.Close()
}

// close tears the socket down once: disconnecting handlers, removal from the
// namespace, connection close, then disconnect handlers.
func (s *Socket) close(reason string, code int) {
	s.closeOnce.Do(func() {
		s.connected.Store(false)
		s.mu.RLock()
		disconnecting := slices.Clone(s.onDisconnecting)
		disconnect := slices.Clone(s.onDisconnect)
		s.mu.RUnlock()

		for _, fn := range disconnecting {
			fn(reason)
		}
		s.nsp.remove(s)
		close(s.done)

		if code != 0 {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				time.Now().Add(s.server.opts.WriteTimeout))
		}
		_ = s.conn.Close()

		s.logger.Debug("socket closed", zap.String("reason", reason))
		for _, fn := range disconnect {
			fn(reason)
		}
	})
}

func (s *Socket) fireError(err error) {
	s.mu.RLock()
	handlers := slices.Clone(s.onError)
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(err)
	}
}

func (s *Socket) readLoop() {
	reason := cnst.ReasonTransportClose
	defer func() { s.close(reason, 0) }()

	pongWait := s.server.opts.PongTimeout
	s.conn.SetReadLimit(s.server.opts.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			reason = closeReason(err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		pkt, err := decodePacket(data)
		if err != nil {
			s.fireError(err)
			continue
		}
		switch pkt.Type {
		case PacketDisconnect:
			reason = cnst.ReasonClientDisconnect
			return
		case PacketEvent:
			s.dispatch(pkt)
		}
	}
}

func closeReason(err error) string {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return cnst.ReasonTransportClose
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return cnst.ReasonPingTimeout
	}
	return cnst.ReasonTransportError
}

func (s *Socket) writeLoop() {
	ticker := time.NewTicker(s.server.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.opts.WriteTimeout))
			s.conn.EnableWriteCompression(f.compress)
			mt := websocket.TextMessage
			if f.binary {
				mt = websocket.BinaryMessage
			}
			if err := s.conn.WriteMessage(mt, f.data); err != nil {
				s.logger.Debug("write failed", zap.Error(err))
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.server.opts.WriteTimeout)); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Socket) dispatch(pkt *Packet) {
	msg := &Message{Event: pkt.Event, Args: pkt.Args}
	if pkt.ID != nil {
		id := *pkt.ID
		var once sync.Once
		msg.Ack = func(args ...any) {
			once.Do(func() {
				if err := s.send(&Packet{Type: PacketAck, ID: &id, Args: args}, false, s.server.opts.Compression); err != nil {
					s.logger.Debug("ack not delivered", zap.Uint64("ack_id", id), zap.Error(err))
				}
			})
		}
	}

	s.mu.RLock()
	mws := slices.Clone(s.middlewares)
	s.mu.RUnlock()
	s.runMiddlewares(mws, msg)
}

func (s *Socket) runMiddlewares(mws []PacketMiddleware, msg *Message) {
	if len(mws) == 0 {
		s.deliver(msg)
		return
	}
	mws[0](msg, func(err error) {
		if err != nil {
			_ = s.send(&Packet{Type: PacketError, Event: msg.Event, Data: err.Error()}, false, false)
			return
		}
		s.runMiddlewares(mws[1:], msg)
	})
}

func (s *Socket) deliver(msg *Message) {
	s.mu.RLock()
	handlers := slices.Clone(s.handlers[msg.Event])
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

func (s *Socket) String() string {
	return fmt.Sprintf("socket(%s)", s.id)
}
