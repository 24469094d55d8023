package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/app/orch"
	"github.com/dkeye/camrelay/internal/config"
	"github.com/dkeye/camrelay/internal/core"
	"github.com/dkeye/camrelay/internal/domain"
	"github.com/dkeye/camrelay/internal/metrics"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Cfg     *config.Config
	Limiter *ConnRateLimiter
	Metrics *metrics.Metrics

	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, cfg *config.Config, m *metrics.Metrics) *SignalWSController {
	return &SignalWSController{
		Orch:    o,
		Cfg:     cfg,
		Limiter: NewConnRateLimiter(cfg.RateLimit, cfg.RateBurst),
		Metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WsSignalConn is the per-connection send side. Frames are queued and
// written by writePump; a full queue is reported as ErrBackpressure.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// HandleSignal upgrades the request and runs the connection until either
// side goes away. Each upgrade gets a fresh identity.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	id := domain.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").Str("conn", string(id)).
		Str("client", c.GetString("client_token")).Str("remote", c.ClientIP()).Msg("new WS connection")

	conn := newWsSignalConn(ws, ctl.Cfg.SendBuffer)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.OnConnect(id, conn)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}
