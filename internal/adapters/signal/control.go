package signal

import (
	"github.com/dkeye/camrelay/internal/domain"
)

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(
	id domain.ConnID,
	conn *WsSignalConn,
) {
	role, camera, _ := ctl.Orch.Registry.RoleOf(id)
	resp := struct {
		Type     string          `json:"type"`
		ConnID   domain.ConnID   `json:"conn_id"`
		Role     string          `json:"role"`
		CameraID domain.CameraID `json:"camera_id,omitempty"`
	}{
		Type:     "whoami",
		ConnID:   id,
		Role:     role.String(),
		CameraID: camera,
	}
	ctl.sendJSON(conn, resp)
}
