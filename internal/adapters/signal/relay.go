package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/app/orch"
	"github.com/dkeye/camrelay/internal/domain"
	"github.com/dkeye/camrelay/internal/metrics"
)

type relayPayload struct {
	Type      string          `json:"type"`
	Target    string          `json:"target"`
	Offer     json.RawMessage `json:"offer"`
	Answer    json.RawMessage `json:"answer"`
	Candidate json.RawMessage `json:"candidate"`
}

func (p relayPayload) body(kind orch.SignalKind) json.RawMessage {
	switch kind {
	case orch.KindOffer:
		return p.Offer
	case orch.KindAnswer:
		return p.Answer
	default:
		return p.Candidate
	}
}

// handleRelay passes the negotiation body through untouched.
func (ctl *SignalWSController) handleRelay(kind orch.SignalKind, id domain.ConnID, data []byte) {
	var p relayPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.Metrics.Drop(metrics.DropBadMessage)
		log.Error().Err(err).Str("module", "signal").Str("kind", string(kind)).Msg("bad relay payload")
		return
	}
	ctl.Orch.Relay(kind, id, domain.ConnID(p.Target), p.body(kind))
}
