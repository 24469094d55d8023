package orch

import (
	"encoding/json"

	"github.com/dkeye/camrelay/internal/domain"
)

// Outbound message types.
const (
	TypeHello        = "hello"
	TypeStarted      = "stream_started"
	TypeListUpdated  = "camera_list_updated"
	TypeError        = "error"
	TypeNewViewer    = "new_viewer"
	TypeStreamEnded  = "stream_ended"
	TypeHeartbeatAck = "heartbeat_ack"
)

// SignalKind is one of the negotiation messages relayed between two peers.
type SignalKind string

const (
	KindOffer        SignalKind = "offer"
	KindAnswer       SignalKind = "answer"
	KindICECandidate SignalKind = "ice_candidate"
)

// Field is the JSON key that carries the kind's payload.
func (k SignalKind) Field() string {
	switch k {
	case KindOffer:
		return "offer"
	case KindAnswer:
		return "answer"
	case KindICECandidate:
		return "candidate"
	default:
		return ""
	}
}

func (k SignalKind) Valid() bool { return k.Field() != "" }

type helloMsg struct {
	Type   string        `json:"type"`
	ConnID domain.ConnID `json:"conn_id"`
}

type startedMsg struct {
	Type       string          `json:"type"`
	CameraID   domain.CameraID `json:"camera_id"`
	CameraName string          `json:"camera_name"`
}

type listMsg struct {
	Type    string            `json:"type"`
	Cameras []domain.CameraID `json:"cameras"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type newViewerMsg struct {
	Type     string        `json:"type"`
	ViewerID domain.ConnID `json:"viewer_id"`
}

type streamEndedMsg struct {
	Type     string          `json:"type"`
	CameraID domain.CameraID `json:"camera_id"`
}

type heartbeatAckMsg struct {
	Type     string          `json:"type"`
	Status   string          `json:"status"`
	CameraID domain.CameraID `json:"camera_id,omitempty"`
	Viewers  int             `json:"viewers"`
}

// relayMsg encodes as {"type": kind, <kind field>: payload, "from": sender}.
type relayMsg struct {
	Kind    SignalKind
	Payload json.RawMessage
	From    domain.ConnID
}

func (m relayMsg) MarshalJSON() ([]byte, error) {
	payload := m.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return json.Marshal(map[string]any{
		"type":         string(m.Kind),
		m.Kind.Field(): payload,
		"from":         m.From,
	})
}
