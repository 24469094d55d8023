package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/app/orch"
	"github.com/dkeye/camrelay/internal/domain"
	"github.com/dkeye/camrelay/internal/metrics"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(ctl.Cfg.WriteWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, id domain.ConnID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(id)).Msg("readPump closing")
		ctl.Orch.OnDisconnect(id)
		ctl.Limiter.Forget(id)
		cancel()
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
		if !ctl.Limiter.Allow(id) {
			ctl.Metrics.Drop(metrics.DropRateLimited)
			log.Debug().Str("module", "signal").Str("conn", string(id)).Msg("rate limited")
			continue
		}
		ctl.handleSignal(id, c, data)
	}
}

func (ctl *SignalWSController) handleSignal(id domain.ConnID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.Metrics.Drop(metrics.DropBadMessage)
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("bad json")
		return
	}

	switch env.Type {
	case "start_stream":
		ctl.handleStartStream(id)
	case "join_camera":
		ctl.handleJoin(id, c, data)
	case "leave_camera":
		ctl.handleLeave(id, data)
	case "heartbeat":
		ctl.handleHeartbeat(id, data)
	case string(orch.KindOffer), string(orch.KindAnswer), string(orch.KindICECandidate):
		ctl.handleRelay(orch.SignalKind(env.Type), id, data)
	case "ping":
		ctl.handlePing(c)
	case "whoami":
		ctl.handleWhoAmI(id, c)
	default:
		ctl.Metrics.Drop(metrics.DropBadMessage)
		log.Warn().Str("module", "signal").Str("conn", string(id)).Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, msg string) {
	ctl.sendJSON(c, map[string]any{
		"type":    orch.TypeError,
		"message": msg,
	})
}
