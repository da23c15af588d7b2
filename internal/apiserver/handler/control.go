package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/amoylab/boom/internal/common/dto"
	"github.com/amoylab/boom/internal/common/errorx"
	"github.com/amoylab/boom/internal/realtime"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Control exposes the realtime server to the application over HTTP
type Control struct {
	io        *realtime.Server
	logger    *zap.Logger
	startedAt time.Time
}

func NewControl(io *realtime.Server, logger *zap.Logger) *Control {
	return &Control{
		io:        io,
		logger:    logger.Named("api"),
		startedAt: time.Now(),
	}
}

// HandleIndex is a liveness probe
func (h *Control) HandleIndex(c *gin.Context) {
	h.logger.Debug("index")
	c.Status(http.StatusOK)
}

func (h *Control) HandleStatus(c *gin.Context) {
	h.logger.Info("status")

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	c.JSON(http.StatusOK, dto.StatusResponse{
		Uptime: time.Since(h.startedAt).Seconds(),
		MemoryUsage: dto.MemoryUsage{
			RSS:       mem.Sys,
			HeapTotal: mem.HeapSys,
			HeapUsed:  mem.HeapAlloc,
			External:  mem.Sys - mem.HeapSys,
		},
		IO: dto.IOStatus{
			SubscriptionCount: h.io.ClientsCount(),
			Namespaces:        h.io.Namespaces(),
		},
	})
}

// HandleEmit sends an event to a namespace, to rooms of it or on behalf of a
// source socket. Flags apply in the order volatile, broadcast, compress,
// binary, then every room narrows the targets further.
func (h *Control) HandleEmit(c *gin.Context) {
	body, ok := h.readBody(c, "emit")
	if !ok {
		return
	}
	nsName, ok := validateEmit(body)
	if !ok {
		_ = c.Error(errorx.ErrValidation)
		return
	}
	var req dto.EmitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		_ = c.Error(errorx.ErrValidation.WithDetail("reason", err.Error()))
		return
	}
	req.Namespace = nsName

	nsp, err := h.io.Namespace(req.Namespace)
	if err != nil {
		_ = c.Error(errorx.ErrNonExistingNamespace.WithDetail("namespace", req.Namespace))
		return
	}

	op := nsp.Operator()
	if req.Source != "" {
		src, err := nsp.Socket(req.Source)
		if err != nil {
			_ = c.Error(errorx.ErrNonExistingSocket.WithDetail("socket", req.Source))
			return
		}
		op = src.Operator()
	}
	if req.Flags.Volatile {
		op = op.Volatile()
	}
	if req.Flags.Broadcast {
		op = op.Broadcast()
	}
	if req.Flags.Compress != nil {
		op = op.Compress(*req.Flags.Compress)
	}
	if req.Flags.Binary != nil {
		op = op.Binary(*req.Flags.Binary)
	}
	for _, room := range req.Rooms {
		op = op.To(room)
	}

	n, err := op.Emit(req.Event, req.Args...)
	if err != nil {
		if errors.Is(err, cnst.ErrSocketNotFound) {
			_ = c.Error(errorx.ErrNonExistingSocket.WithDetail("socket", req.Source))
			return
		}
		_ = c.Error(err)
		return
	}
	h.logger.Debug("emitted",
		zap.String("namespace", req.Namespace),
		zap.String("event", req.Event),
		zap.Int("sockets", n))
	c.JSON(http.StatusOK, true)
}

func (h *Control) HandleJoin(c *gin.Context) {
	body, ok := h.readBody(c, "join")
	if !ok {
		return
	}
	nsName, ok := validateJoin(body)
	if !ok {
		_ = c.Error(errorx.ErrValidation)
		return
	}
	var req dto.JoinRequest
	if err := json.Unmarshal(body, &req); err != nil {
		_ = c.Error(errorx.ErrValidation.WithDetail("reason", err.Error()))
		return
	}
	req.Namespace = nsName

	sock, ok := h.resolveSocket(c, req.Namespace, req.Socket)
	if !ok {
		return
	}
	if err := sock.Join(req.Rooms...); err != nil {
		h.fail(c, req.Socket, err)
		return
	}
	c.JSON(http.StatusOK, true)
}

func (h *Control) HandleLeave(c *gin.Context) {
	body, ok := h.readBody(c, "leave")
	if !ok {
		return
	}
	nsName, ok := validateLeave(body)
	if !ok {
		_ = c.Error(errorx.ErrValidation)
		return
	}
	var req dto.LeaveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		_ = c.Error(errorx.ErrValidation.WithDetail("reason", err.Error()))
		return
	}
	req.Namespace = nsName

	sock, ok := h.resolveSocket(c, req.Namespace, req.Socket)
	if !ok {
		return
	}
	if err := sock.Leave(req.Room); err != nil {
		h.fail(c, req.Socket, err)
		return
	}
	c.JSON(http.StatusOK, true)
}

// readBody stashes the raw body for error logging and rejects anything that
// is not JSON
func (h *Control) readBody(c *gin.Context, action string) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		_ = c.Error(errorx.ErrBadRequest.WithDetail("reason", err.Error()))
		return nil, false
	}
	c.Set(errorx.RawBodyKey, body)
	h.logger.Info(action, zap.ByteString("body", body))

	if !isJSONObject(body) {
		_ = c.Error(errorx.ErrBadRequest)
		return nil, false
	}
	return body, true
}

func (h *Control) resolveSocket(c *gin.Context, namespace, id string) (*realtime.Socket, bool) {
	nsp, err := h.io.Namespace(namespace)
	if err != nil {
		_ = c.Error(errorx.ErrNonExistingNamespace.WithDetail("namespace", namespace))
		return nil, false
	}
	sock, err := nsp.Socket(id)
	if err != nil {
		_ = c.Error(errorx.ErrNonExistingSocket.WithDetail("socket", id))
		return nil, false
	}
	return sock, true
}

// fail maps a registry error raised after the socket was resolved. A socket
// that disconnected meanwhile is still a missing target, anything else is
// unexpected.
func (h *Control) fail(c *gin.Context, id string, err error) {
	if errors.Is(err, cnst.ErrSocketNotFound) {
		_ = c.Error(errorx.ErrNonExistingSocket.WithDetail("socket", id))
		return
	}
	_ = c.Error(err)
}
