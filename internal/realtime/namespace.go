package realtime

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/ifuryst/lol"
	"go.uber.org/zap"
)

// Middleware runs before a socket is admitted to a namespace.
// A non-nil error rejects the socket.
type Middleware func(s *Socket) error

// Namespace is a partition of sockets with its own rooms.
// Room membership is only mutated through Join, Leave and socket removal.
type Namespace struct {
	name           string
	server         *Server
	logger         *zap.Logger
	maxConnections int

	mu           sync.RWMutex
	sockets      map[string]*Socket
	rooms        map[string]map[string]*Socket
	middlewares  []Middleware
	onConnection []func(*Socket)
	onReject     []func(*Socket, error)
}

func newNamespace(server *Server, name string) *Namespace {
	return &Namespace{
		name:    name,
		server:  server,
		logger:  server.logger.With(zap.String("nsp", name)),
		sockets: make(map[string]*Socket),
		rooms:   make(map[string]map[string]*Socket),
	}
}

func (n *Namespace) Name() string { return n.name }

// SetMaxConnections caps concurrent sockets, 0 means unlimited
func (n *Namespace) SetMaxConnections(max int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.maxConnections = max
}

// Use appends a connect middleware
func (n *Namespace) Use(mw Middleware) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.middlewares = append(n.middlewares, mw)
}

// OnConnection registers a handler fired once a socket is admitted
func (n *Namespace) OnConnection(fn func(*Socket)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onConnection = append(n.onConnection, fn)
}

// OnReject registers a handler fired when an upgraded socket is refused
// admission, after or instead of its connect middlewares
func (n *Namespace) OnReject(fn func(*Socket, error)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onReject = append(n.onReject, fn)
}

// Len returns the number of connected sockets
func (n *Namespace) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.sockets)
}

func (n *Namespace) full() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.maxConnections > 0 && len(n.sockets) >= n.maxConnections
}

// fullID qualifies a pure id with the namespace, the root namespace uses pure ids
func (n *Namespace) fullID(pureID string) string {
	if n.name == cnst.RootNamespace {
		return pureID
	}
	return n.name + "#" + pureID
}

// PureID strips the namespace qualifier from a socket id
func (n *Namespace) PureID(id string) string {
	return strings.TrimPrefix(id, n.name+"#")
}

// Socket finds a connected socket by full or pure id
func (n *Namespace) Socket(id string) (*Socket, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if s, ok := n.sockets[id]; ok {
		return s, nil
	}
	if s, ok := n.sockets[n.fullID(id)]; ok {
		return s, nil
	}
	return nil, cnst.ErrSocketNotFound
}

func (n *Namespace) socketList() []*Socket {
	n.mu.RLock()
	defer n.mu.RUnlock()
	list := make([]*Socket, 0, len(n.sockets))
	for _, s := range n.sockets {
		list = append(list, s)
	}
	return list
}

func (n *Namespace) runMiddlewares(s *Socket) error {
	n.mu.RLock()
	mws := slices.Clone(n.middlewares)
	n.mu.RUnlock()
	for _, mw := range mws {
		if err := mw(s); err != nil {
			return err
		}
	}
	return nil
}

func (n *Namespace) fireConnection(s *Socket) {
	n.mu.RLock()
	handlers := slices.Clone(n.onConnection)
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn(s)
	}
}

func (n *Namespace) fireReject(s *Socket, err error) {
	n.mu.RLock()
	handlers := slices.Clone(n.onReject)
	n.mu.RUnlock()
	for _, fn := range handlers {
		fn(s, err)
	}
}

// add registers the socket and joins it to the room named after its id.
// Capacity is enforced under the namespace lock.
func (n *Namespace) add(s *Socket) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.maxConnections > 0 && len(n.sockets) >= n.maxConnections {
		return errNamespaceFull
	}
	n.sockets[s.id] = s
	n.joinLocked(s, s.id)
	s.connected.Store(true)
	return nil
}

func (n *Namespace) remove(s *Socket) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for room, members := range n.rooms {
		if _, ok := members[s.id]; ok {
			n.leaveLocked(s.id, room)
		}
	}
	delete(n.sockets, s.id)
}

func (n *Namespace) joinLocked(s *Socket, room string) {
	members, ok := n.rooms[room]
	if !ok {
		members = make(map[string]*Socket)
		n.rooms[room] = members
	}
	members[s.id] = s
}

func (n *Namespace) leaveLocked(id, room string) {
	members, ok := n.rooms[room]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(n.rooms, room)
	}
}

// Join adds the socket to every listed room
func (n *Namespace) Join(id string, rooms ...string) error {
	for _, room := range rooms {
		if room == "" {
			return cnst.ErrEmptyRoom
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.lookupLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", cnst.ErrSocketNotFound, id)
	}
	for _, room := range lol.UniqSlice(rooms) {
		n.joinLocked(s, room)
	}
	return nil
}

// Leave removes the socket from one room. Leaving a room the socket is not in is a no-op.
func (n *Namespace) Leave(id, room string) error {
	if room == "" {
		return cnst.ErrEmptyRoom
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	s, ok := n.lookupLocked(id)
	if !ok {
		return fmt.Errorf("%w: %s", cnst.ErrSocketNotFound, id)
	}
	n.leaveLocked(s.id, room)
	return nil
}

func (n *Namespace) lookupLocked(id string) (*Socket, bool) {
	if s, ok := n.sockets[id]; ok {
		return s, true
	}
	s, ok := n.sockets[n.fullID(id)]
	return s, ok
}

// roomsOf returns the rooms a socket belongs to, sorted
func (n *Namespace) roomsOf(id string) []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var rooms []string
	for room, members := range n.rooms {
		if _, ok := members[id]; ok {
			rooms = append(rooms, room)
		}
	}
	sort.Strings(rooms)
	return rooms
}

// targets resolves the sockets in the intersection of all rooms, or every
// socket when no room is given. exclude is left out of the result.
func (n *Namespace) targets(rooms []string, exclude *Socket) []*Socket {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var candidates map[string]*Socket
	if len(rooms) == 0 {
		candidates = n.sockets
	} else {
		candidates = n.rooms[rooms[0]]
	}

	out := make([]*Socket, 0, len(candidates))
	for id, s := range candidates {
		if exclude != nil && id == exclude.id {
			continue
		}
		if inAll(n.rooms, rooms[min(1, len(rooms)):], id) {
			out = append(out, s)
		}
	}
	return out
}

func inAll(index map[string]map[string]*Socket, rooms []string, id string) bool {
	for _, room := range rooms {
		if _, ok := index[room][id]; !ok {
			return false
		}
	}
	return true
}

// Operator starts a namespace wide emit
func (n *Namespace) Operator() *Operator {
	return newOperator(n, nil)
}

// Emit sends an event to every socket of the namespace
func (n *Namespace) Emit(event string, args ...any) (int, error) {
	return n.Operator().Emit(event, args...)
}
