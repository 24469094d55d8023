package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/domain"
)

type cameraPayload struct {
	Type     string `json:"type"`
	CameraID string `json:"camera_id"`
}

func (ctl *SignalWSController) handleStartStream(id domain.ConnID) {
	log.Info().Str("module", "signal").Str("conn", string(id)).Msg("start_stream")
	_, _ = ctl.Orch.StartStream(id)
}

func (ctl *SignalWSController) handleJoin(
	id domain.ConnID,
	conn *WsSignalConn,
	data []byte,
) {
	var p cameraPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("camera", p.CameraID).Msg("join_camera")
	_ = ctl.Orch.JoinCamera(id, domain.CameraID(p.CameraID))
}

// handleLeave drops the camera membership; the connection stays open.
func (ctl *SignalWSController) handleLeave(id domain.ConnID, data []byte) {
	var p cameraPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave payload")
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("camera", p.CameraID).Msg("leave_camera")
	ctl.Orch.LeaveCamera(id, domain.CameraID(p.CameraID))
}

func (ctl *SignalWSController) handleHeartbeat(id domain.ConnID, data []byte) {
	var p cameraPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad heartbeat payload")
		return
	}
	ctl.Orch.Heartbeat(id, domain.CameraID(p.CameraID))
}
