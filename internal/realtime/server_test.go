package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(zap.NewNop(), opts)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Close(ctx)
		ts.Close()
	})
	return srv, ts
}

func wsURL(ts *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http")
	if query != "" {
		u += "?" + query
	}
	return u
}

// dial connects and consumes the connect packet
func dial(t *testing.T, ts *httptest.Server, query string) (*websocket.Conn, *Packet) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, query), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	p := readPacket(t, conn)
	require.Equal(t, PacketConnect, p.Type)
	return conn, p
}

func readPacket(t *testing.T, conn *websocket.Conn) *Packet {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var p Packet
	require.NoError(t, json.Unmarshal(data, &p))
	return &p
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var ne interface{ Timeout() bool }
	require.True(t, errors.As(err, &ne) && ne.Timeout(), "expected no frame, got %v", err)
}

func writeJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestServer_ConnectAssignsIDs(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	chat := srv.Of("/chat")

	_, p := dial(t, ts, "")
	assert.Equal(t, "/", p.Nsp)
	assert.NotContains(t, p.Sid, "#")

	root, err := srv.Namespace("/")
	require.NoError(t, err)
	s, err := root.Socket(p.Sid)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), s.PureID())
	assert.Equal(t, []string{s.ID()}, s.Rooms())

	_, p = dial(t, ts, "nsp=/chat")
	assert.Equal(t, "/chat", p.Nsp)
	assert.True(t, strings.HasPrefix(p.Sid, "/chat#"))

	s, err = chat.Socket(p.Sid)
	require.NoError(t, err)
	byPure, err := chat.Socket(s.PureID())
	require.NoError(t, err)
	assert.Same(t, s, byPure)
	assert.Equal(t, s.PureID(), chat.PureID(s.ID()))

	assert.Equal(t, 2, srv.ClientsCount())
	assert.Equal(t, []string{"/", "/chat"}, srv.Namespaces())
	assert.Equal(t, "127.0.0.1", s.Handshake().Address)
	assert.Equal(t, "/chat", s.Handshake().Query["nsp"])
}

func TestServer_UnknownNamespace(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "nsp=/nope"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = NewServer(zap.NewNop(), Options{}).Namespace("/nope")
	assert.ErrorIs(t, err, cnst.ErrNamespaceNotFound)
}

func TestServer_TokenVerification(t *testing.T) {
	srv, ts := newTestServer(t, Options{
		TokenVerifier: func(token string) (map[string]any, error) {
			if token != "good" {
				return nil, errors.New("bad token")
			}
			return map[string]any{"sub": "42"}, nil
		},
	})
	root, _ := srv.Namespace("/")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "token=bad"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, p := dial(t, ts, "token=good")
	s, err := root.Socket(p.Sid)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"sub": "42"}, s.DecodedToken())

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), http.Header{"Authorization": []string{"Bearer good"}})
	require.NoError(t, err)
	defer conn.Close()
	p = readPacket(t, conn)
	s, err = root.Socket(p.Sid)
	require.NoError(t, err)
	assert.NotNil(t, s.DecodedToken())

	_, p = dial(t, ts, "")
	s, err = root.Socket(p.Sid)
	require.NoError(t, err)
	assert.Nil(t, s.DecodedToken())
}

func TestServer_MiddlewareRejects(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	root, _ := srv.Namespace("/")
	root.Use(func(s *Socket) error { return errors.New("not welcome") })

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.NoError(t, err)
	defer conn.Close()

	p := readPacket(t, conn)
	assert.Equal(t, PacketError, p.Type)
	assert.Equal(t, "not welcome", p.Data)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
	assert.Zero(t, srv.ClientsCount())
}

func TestServer_MaxConnections(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	root, _ := srv.Namespace("/")
	root.SetMaxConnections(1)

	dial(t, ts, "")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_MaxConnectionsConcurrentDials(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	root, _ := srv.Namespace("/")
	root.SetMaxConnections(2)
	rejected := make(chan error, 16)
	root.OnReject(func(_ *Socket, err error) { rejected <- err })

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		conns    []*websocket.Conn
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var p Packet
			ok := conn.ReadJSON(&p) == nil && p.Type == PacketConnect
			mu.Lock()
			defer mu.Unlock()
			conns = append(conns, conn)
			if ok {
				admitted++
			}
		}()
	}
	wg.Wait()
	t.Cleanup(func() {
		for _, c := range conns {
			_ = c.Close()
		}
	})

	assert.Equal(t, 2, admitted)
	assert.Equal(t, 2, root.Len())
	close(rejected)
	for err := range rejected {
		assert.ErrorIs(t, err, errNamespaceFull)
	}
}

func TestServer_CheckOrigin(t *testing.T) {
	_, ts := newTestServer(t, Options{AllowOrigins: []string{"https://app.example"}})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), http.Header{"Origin": []string{"https://app.example"}})
	require.NoError(t, err)
	_ = conn.Close()
}

func TestServer_CloseDisconnectsEverySocket(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	root, _ := srv.Namespace("/")

	reasons := make(chan string, 2)
	root.OnConnection(func(s *Socket) {
		s.OnDisconnect(func(reason string) { reasons <- reason })
	})
	c1, _ := dial(t, ts, "")
	dial(t, ts, "")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Close(ctx))

	for i := 0; i < 2; i++ {
		assert.Equal(t, cnst.ReasonServerShutdown, <-reasons)
	}
	assert.Zero(t, srv.ClientsCount())

	_, _, err := c1.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
