package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/amoylab/boom/internal/common/errorx"
	"github.com/amoylab/boom/internal/realtime"
	"github.com/amoylab/boom/internal/session"
	"github.com/amoylab/boom/pkg/metrics"
	"github.com/amoylab/boom/pkg/trace"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	eventConnect       = cnst.EventConnect
	eventDisconnecting = cnst.EventDisconnecting
	eventDisconnect    = cnst.EventDisconnect
	eventError         = cnst.EventError

	// metrics label for application defined events
	kindMessage = "message"
)

// Relay mirrors every socket into the session store and reports its
// lifecycle to the application. Reports run detached from the socket and
// their failures are logged and dropped.
type Relay struct {
	logger     *zap.Logger
	store      session.Store
	client     *Client
	classifier *errorx.Classifier
	metrics    *metrics.Metrics
	devMode    bool

	wg     sync.WaitGroup
	mu     sync.Mutex
	states map[string]*state
}

// state tracks one socket. Store operations of a socket run one after the
// other in the order their events were received, starting with create.
type state struct {
	mu   sync.Mutex
	tail chan struct{}
}

// next reserves the following slot in the queue. The caller waits on prev
// and must call done once its store operation has returned.
func (st *state) next() (prev <-chan struct{}, done func()) {
	ch := make(chan struct{})
	st.mu.Lock()
	prev, st.tail = st.tail, ch
	st.mu.Unlock()
	return prev, func() { close(ch) }
}

// New creates a relay. m may be nil.
func New(logger *zap.Logger, store session.Store, client *Client, classifier *errorx.Classifier, m *metrics.Metrics, devMode bool) *Relay {
	return &Relay{
		logger:     logger.Named("relay"),
		store:      store,
		client:     client,
		classifier: classifier,
		metrics:    m,
		devMode:    devMode,
		states:     make(map[string]*state),
	}
}

// Setup wires every namespace once at startup. The root namespace is always
// included.
func (r *Relay) Setup(srv *realtime.Server, namespaces []string) {
	names := append([]string{cnst.RootNamespace}, namespaces...)
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		nsp := srv.Of(name)
		nsp.Use(r.ReportConnect)
		nsp.OnConnection(r.attach)
		nsp.OnReject(r.ReportRejected)
		r.logger.Info("namespace ready", zap.String("namespace", name))
	}
}

// ReportConnect is a namespace middleware: it creates the session and
// posts the connect event without delaying the handshake.
func (r *Relay) ReportConnect(s *realtime.Socket) error {
	_, done := r.track(s.ID()).next()
	snap := snapshot(s)
	env := connectEnvelope(s)

	r.spawn(s, eventConnect, func(ctx context.Context) {
		err := func() error {
			defer done()
			return r.store.Create(ctx, snap)
		}()
		r.storeFailed("create", s.ID(), err)
		r.report(ctx, s, eventConnect, env)
	})
	return nil
}

// attach installs the per socket handlers once the socket is admitted
func (r *Relay) attach(s *realtime.Socket) {
	r.metrics.SocketConnected(s.Namespace().Name())
	s.Use(r.ReportEvent(s))
	s.OnDisconnecting(func(reason string) { r.ReportDisconnecting(s, reason) })
	s.OnDisconnect(func(reason string) { r.ReportDisconnect(s, reason) })
	s.OnError(func(err error) { r.ReportError(s, err) })
}

// ReportEvent returns the packet middleware relaying inbound events of s.
// It never calls next: events have no in-process handlers, the application
// is their only consumer.
func (r *Relay) ReportEvent(s *realtime.Socket) realtime.PacketMiddleware {
	return func(msg *realtime.Message, _ func(error)) {
		update := r.queueUpdate(s)
		env := messageEnvelope(s, msg)
		r.spawn(s, msg.Event, func(ctx context.Context) {
			update(ctx)
			data, ok := r.report(ctx, s, msg.Event, env)
			if ok && msg.Ack != nil {
				msg.Ack(data)
			}
		})
	}
}

// ReportDisconnecting posts the disconnecting event while the socket still
// holds its rooms
func (r *Relay) ReportDisconnecting(s *realtime.Socket, reason string) {
	update := r.queueUpdate(s)
	env := reasonEnvelope(s, eventDisconnecting, reason)
	r.spawn(s, eventDisconnecting, func(ctx context.Context) {
		update(ctx)
		r.report(ctx, s, eventDisconnecting, env)
	})
}

// ReportDisconnect removes the session and posts the disconnect event
func (r *Relay) ReportDisconnect(s *realtime.Socket, reason string) {
	r.metrics.SocketDisconnected(s.Namespace().Name())
	r.finish(s, reason)
}

// ReportRejected removes the session and posts the disconnect event of a
// socket refused admission after its connect was reported
func (r *Relay) ReportRejected(s *realtime.Socket, err error) {
	if r.lookup(s.ID()) == nil {
		return
	}
	r.finish(s, err.Error())
}

func (r *Relay) finish(s *realtime.Socket, reason string) {
	env := reasonEnvelope(s, eventDisconnect, reason)
	sid := s.ID()
	var (
		prev <-chan struct{}
		done = func() {}
	)
	if st := r.lookup(sid); st != nil {
		prev, done = st.next()
	}
	r.spawn(s, eventDisconnect, func(ctx context.Context) {
		defer r.forget(sid)
		err := func() error {
			defer done()
			if prev != nil && !await(ctx, prev) {
				return ctx.Err()
			}
			return r.store.Delete(ctx, sid)
		}()
		r.storeFailed("delete", sid, err)
		r.report(ctx, s, eventDisconnect, env)
	})
}

// ReportError posts a socket level error, the socket stays open
func (r *Relay) ReportError(s *realtime.Socket, sockErr error) {
	update := r.queueUpdate(s)
	env := errorEnvelope(s, sockErr)
	r.spawn(s, eventError, func(ctx context.Context) {
		update(ctx)
		r.report(ctx, s, eventError, env)
	})
}

// Wait blocks until every in-flight report has finished or ctx is done
func (r *Relay) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Relay) spawn(s *realtime.Socket, event string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("report panicked",
					zap.String("sid", s.ID()),
					zap.String("event", event),
					zap.Any("panic", p))
			}
		}()
		fn(context.Background())
	}()
}

// report posts env and reports whether the application accepted it
func (r *Relay) report(ctx context.Context, s *realtime.Socket, event string, env *Envelope) (any, bool) {
	nsp := s.Namespace().Name()
	scope := trace.Tracer(cnst.TraceRelay).Start(ctx, cnst.SpanReport).
		WithAttrs(
			attribute.String(cnst.AttrNamespace, nsp),
			attribute.String(cnst.AttrSocketID, s.ID()),
			attribute.String(cnst.AttrEvent, event),
		)
	defer scope.End()

	start := time.Now()
	data, err := r.client.Post(scope.Ctx, nsp, event, env)
	r.metrics.ReportDone(metricKind(event), start, err)
	if err != nil {
		var appErr *errorx.AppError
		if errors.As(err, &appErr) {
			scope.WithAttrs(attribute.Int(cnst.AttrHTTPStatusCode, appErr.StatusCode))
		}
		packet := r.classifier.Classify(s.ID(), event, err)
		scope.Fail(err, packet.Message)
		return nil, false
	}
	return data, true
}

// queueUpdate snapshots s now and reserves its place in the store queue.
// The returned func performs the update once the previous operation is done.
func (r *Relay) queueUpdate(s *realtime.Socket) func(ctx context.Context) {
	sid := s.ID()
	snap := snapshot(s)
	st := r.lookup(sid)
	if st == nil {
		return func(context.Context) {
			r.storeFailed("update", sid, fmt.Errorf("%w: %s", session.ErrSessionNotFound, sid))
		}
	}
	prev, done := st.next()
	return func(ctx context.Context) {
		defer done()
		if !await(ctx, prev) {
			return
		}
		r.storeFailed("update", sid, r.store.Update(ctx, snap))
	}
}

func (r *Relay) storeFailed(op, sid string, err error) {
	if err == nil {
		return
	}
	r.metrics.StoreError(op)
	errorx.ClassifyStoreError(r.logger, r.devMode, op, sid, err)
}

func await(ctx context.Context, prev <-chan struct{}) bool {
	select {
	case <-prev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Relay) track(sid string) *state {
	head := make(chan struct{})
	close(head)
	st := &state{tail: head}
	r.mu.Lock()
	r.states[sid] = st
	r.mu.Unlock()
	return st
}

func (r *Relay) lookup(sid string) *state {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[sid]
}

func (r *Relay) forget(sid string) {
	r.mu.Lock()
	delete(r.states, sid)
	r.mu.Unlock()
}

func snapshot(s *realtime.Socket) *session.Snapshot {
	return &session.Snapshot{
		ID: s.ID(),
		Data: session.Data{
			Rooms:        s.Rooms(),
			Handshake:    s.Handshake(),
			DecodedToken: s.DecodedToken(),
		},
	}
}

func metricKind(event string) string {
	switch event {
	case eventConnect, eventDisconnecting, eventDisconnect, eventError:
		return event
	default:
		return kindMessage
	}
}
