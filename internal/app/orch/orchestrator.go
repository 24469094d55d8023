// Package orch coordinates connection lifecycle, camera membership and
// negotiation relay on top of the registry and the connection hub.
package orch

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/app"
	"github.com/dkeye/camrelay/internal/core"
	"github.com/dkeye/camrelay/internal/domain"
	"github.com/dkeye/camrelay/internal/metrics"
)

// Transport is what the orchestrator needs from the connection directory.
type Transport interface {
	Attach(domain.ConnID, core.SignalConnection)
	Detach(domain.ConnID)
	SendTo(domain.ConnID, core.Frame) error
	Broadcast(core.Frame) core.PublishResult
	Publish(group string, from domain.ConnID, data core.Frame) core.PublishResult
	JoinGroup(domain.ConnID, string)
	LeaveGroup(domain.ConnID, string)
	DropGroup(string)
	Kick(domain.ConnID)
}

type Orchestrator struct {
	Registry *app.Registry
	Hub      Transport
	Policy   app.Policy
	Metrics  *metrics.Metrics

	// mu serializes lifecycle mutations so that registry state, group
	// membership and the camera list broadcast change together.
	mu sync.Mutex
}

func New(reg *app.Registry, hub Transport, policy app.Policy, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{Registry: reg, Hub: hub, Policy: policy, Metrics: m}
}

func cameraGroup(id domain.CameraID) string { return "camera:" + string(id) }

func encode(v any) (core.Frame, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode")
		return nil, false
	}
	return b, true
}

func (o *Orchestrator) send(id domain.ConnID, v any) {
	data, ok := encode(v)
	if !ok {
		return
	}
	if err := o.Hub.SendTo(id, data); err != nil {
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("send failed")
	}
}

// broadcastCameraList sends a fresh snapshot of camera ids to every
// connection. Callers hold o.mu.
func (o *Orchestrator) broadcastCameraList() {
	data, ok := encode(listMsg{Type: TypeListUpdated, Cameras: o.Registry.IDs()})
	if !ok {
		return
	}
	o.Metrics.Broadcast()
	o.handleDropped(o.Hub.Broadcast(data))
}

func (o *Orchestrator) handleDropped(res core.PublishResult) {
	for _, id := range res.Dropped {
		o.Metrics.Drop(metrics.DropBackpressure)
		if o.Policy == nil {
			continue
		}
		switch o.Policy.OnBackPressure(id) {
		case app.KickMember:
			o.Hub.Kick(id)
		case app.NoAction:
		}
	}
}

// OnConnect registers a new transport identity with no role.
func (o *Orchestrator) OnConnect(id domain.ConnID, conn core.SignalConnection) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Hub.Attach(id, conn)
	o.Registry.Connect(id)
	o.Metrics.ConnOpened()
	o.send(id, helloMsg{Type: TypeHello, ConnID: id})
	log.Info().Str("module", "orch").Str("conn", string(id)).Msg("connected")
}

// OnDisconnect runs the full cleanup for id: viewer membership, owned camera,
// then the identity itself. Calling it twice is harmless.
func (o *Orchestrator) OnDisconnect(id domain.ConnID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Hub.Detach(id)
	res := o.Registry.Disconnect(id)
	if !res.Known {
		return
	}
	o.Metrics.ConnClosed()

	if res.Viewed != "" {
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("camera", string(res.Viewed)).Msg("viewer disconnected")
	}
	if res.Removed != nil {
		o.endCamera(*res.Removed)
		o.broadcastCameraList()
	}
	log.Info().Str("module", "orch").Str("conn", string(id)).Msg("disconnected")
}

// endCamera tells the viewers of a removed camera that it is gone and
// dissolves its notification group.
func (o *Orchestrator) endCamera(rm app.Removal) {
	group := cameraGroup(rm.Camera.ID)
	if data, ok := encode(streamEndedMsg{Type: TypeStreamEnded, CameraID: rm.Camera.ID}); ok {
		o.handleDropped(o.Hub.Publish(group, rm.Camera.Owner, data))
	}
	o.Hub.DropGroup(group)
	log.Info().Str("module", "orch").Str("camera", string(rm.Camera.ID)).
		Int("orphaned", len(rm.Orphaned)).Msg("camera ended")
}
