package realtime

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/amoylab/boom/pkg/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenVerifier decodes a client supplied token into claims
type TokenVerifier func(token string) (map[string]any, error)

// Options tunes the transport of every socket served by a Server
type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	Compression    bool
	AllowOrigins   []string
	TokenVerifier  TokenVerifier
}

func (o *Options) setDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 1 << 20
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
}

// Server is the registry of namespaces and the websocket entry point.
// The target namespace is chosen with the nsp query parameter.
type Server struct {
	logger   *zap.Logger
	opts     Options
	upgrader websocket.Upgrader

	mu         sync.RWMutex
	namespaces map[string]*Namespace
	closed     bool

	wg sync.WaitGroup
}

// NewServer creates a server with the root namespace registered
func NewServer(logger *zap.Logger, opts Options) *Server {
	opts.setDefaults()
	s := &Server{
		logger:     logger.Named("realtime"),
		opts:       opts,
		namespaces: make(map[string]*Namespace),
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: opts.Compression,
		CheckOrigin:       s.checkOrigin,
	}
	s.Of(cnst.RootNamespace)
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// Of returns the namespace with the given name, registering it if needed
func (s *Server) Of(name string) *Namespace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if nsp, ok := s.namespaces[name]; ok {
		return nsp
	}
	nsp := newNamespace(s, name)
	s.namespaces[name] = nsp
	return nsp
}

// Namespace looks up a registered namespace
func (s *Server) Namespace(name string) (*Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nsp, ok := s.namespaces[name]
	if !ok {
		return nil, cnst.ErrNamespaceNotFound
	}
	return nsp, nil
}

// Namespaces returns the registered namespace names, sorted
func (s *Server) Namespaces() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) namespaceList() []*Namespace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*Namespace, 0, len(s.namespaces))
	for _, nsp := range s.namespaces {
		list = append(list, nsp)
	}
	return list
}

// ClientsCount returns the number of connected sockets across all namespaces
func (s *Server) ClientsCount() int {
	count := 0
	for _, nsp := range s.namespaceList() {
		count += nsp.Len()
	}
	return count
}

func (s *Server) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// ServeHTTP upgrades the request and attaches the socket to its namespace
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := utils.FirstNonEmpty(r.URL.Query().Get("nsp"), cnst.RootNamespace)
	nsp, err := s.Namespace(name)
	if err != nil {
		http.Error(w, "Invalid namespace", http.StatusNotFound)
		return
	}
	if s.isClosed() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	if nsp.full() {
		http.Error(w, "Namespace is full", http.StatusServiceUnavailable)
		return
	}

	claims, err := s.verifyToken(r)
	if err != nil {
		s.logger.Debug("rejected socket token", zap.String("nsp", name), zap.Error(err))
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket connection", zap.Error(err))
		return
	}

	sock := newSocket(s, nsp, conn, newHandshake(r), claims)
	if err := nsp.runMiddlewares(sock); err != nil {
		s.refuse(nsp, sock, err)
		return
	}

	if !s.admit() {
		s.refuse(nsp, sock, errShuttingDown)
		return
	}
	if err := nsp.add(sock); err != nil {
		s.wg.Add(-2)
		s.refuse(nsp, sock, err)
		return
	}
	_ = sock.send(&Packet{Type: PacketConnect, Sid: sock.id, Nsp: nsp.name}, false, false)
	go func() {
		defer s.wg.Done()
		sock.writeLoop()
	}()
	nsp.fireConnection(sock)
	go func() {
		defer s.wg.Done()
		sock.readLoop()
	}()
}

var (
	errShuttingDown  = errors.New("server is shutting down")
	errNamespaceFull = errors.New("namespace is full")
)

func (s *Server) refuse(nsp *Namespace, sock *Socket, err error) {
	sock.reject(err)
	nsp.fireReject(sock, err)
}

// admit reserves the loop goroutines of a new socket unless Close has begun
func (s *Server) admit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	s.wg.Add(2)
	return true
}

func (s *Server) verifyToken(r *http.Request) (map[string]any, error) {
	if s.opts.TokenVerifier == nil {
		return nil, nil
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return nil, nil
	}
	return s.opts.TokenVerifier(token)
}

// Close disconnects every socket and waits for their loops to exit
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	for _, nsp := range s.namespaceList() {
		for _, sock := range nsp.socketList() {
			sock.close(cnst.ReasonServerShutdown, websocket.CloseGoingAway)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
