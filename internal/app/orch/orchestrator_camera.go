package orch

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/domain"
)

// StartStream creates a camera owned by id, answers with its id and name and
// announces the new camera list to everyone.
func (o *Orchestrator) StartStream(id domain.ConnID) (domain.Camera, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	res, err := o.Registry.StartCamera(id)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("start stream rejected")
		o.send(id, errorMsg{Type: TypeError, Message: errorText(err)})
		return domain.Camera{}, err
	}
	if res.Left != "" {
		o.Hub.LeaveGroup(id, cameraGroup(res.Left))
	}
	if res.Replaced != nil {
		o.endCamera(*res.Replaced)
	}

	cam := res.Camera
	o.Hub.JoinGroup(id, cameraGroup(cam.ID))
	o.send(id, startedMsg{Type: TypeStarted, CameraID: cam.ID, CameraName: cam.Name})
	o.broadcastCameraList()

	log.Info().Str("module", "orch").Str("conn", string(id)).Str("camera", string(cam.ID)).Str("name", cam.Name).Msg("stream started")
	return cam, nil
}

// JoinCamera adds viewer to camera and tells the owner a viewer arrived so
// it can start negotiating. Failures are reported to viewer only.
func (o *Orchestrator) JoinCamera(viewer domain.ConnID, camera domain.CameraID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	res, err := o.Registry.Join(viewer, camera)
	if err != nil {
		o.Metrics.JoinError()
		log.Info().Err(err).Str("module", "orch").Str("conn", string(viewer)).Str("camera", string(camera)).Msg("join rejected")
		o.send(viewer, errorMsg{Type: TypeError, Message: errorText(err)})
		return err
	}
	if res.Left != "" {
		o.Hub.LeaveGroup(viewer, cameraGroup(res.Left))
	}
	o.Hub.JoinGroup(viewer, cameraGroup(camera))
	o.send(res.Camera.Owner, newViewerMsg{Type: TypeNewViewer, ViewerID: viewer})

	log.Info().Str("module", "orch").Str("conn", string(viewer)).Str("camera", string(camera)).
		Int("viewers", res.Camera.Viewers).Bool("rejoined", res.Rejoined).Msg("viewer joined")
	return nil
}

// LeaveCamera drops viewer's membership. Unknown cameras and non-members are
// ignored.
func (o *Orchestrator) LeaveCamera(viewer domain.ConnID, camera domain.CameraID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.Registry.Leave(viewer, camera) {
		return
	}
	o.Hub.LeaveGroup(viewer, cameraGroup(camera))
}

// Heartbeat acknowledges a streamer's keepalive for its camera.
func (o *Orchestrator) Heartbeat(id domain.ConnID, camera domain.CameraID) {
	cam, ok := o.Registry.Heartbeat(id, camera)
	if !ok {
		o.send(id, heartbeatAckMsg{Type: TypeHeartbeatAck, Status: "unknown"})
		return
	}
	o.send(id, heartbeatAckMsg{Type: TypeHeartbeatAck, Status: "alive", CameraID: cam.ID, Viewers: cam.Viewers})
}

func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrCameraNotFound):
		return "Camera not found"
	case errors.Is(err, domain.ErrAlreadyStreaming):
		return "Already streaming"
	case errors.Is(err, domain.ErrUnknownConn):
		return "Connection not registered"
	default:
		return "internal error"
	}
}
