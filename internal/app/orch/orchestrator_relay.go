package orch

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/core"
	"github.com/dkeye/camrelay/internal/domain"
	"github.com/dkeye/camrelay/internal/metrics"
)

// Relay forwards an opaque negotiation payload from one connection to
// another. It is best effort: an empty target, a gone target or a full
// queue drop the message without telling the sender.
func (o *Orchestrator) Relay(kind SignalKind, from, target domain.ConnID, payload json.RawMessage) {
	if target == "" || !kind.Valid() {
		return
	}
	data, ok := encode(relayMsg{Kind: kind, Payload: payload, From: from})
	if !ok {
		return
	}
	if err := o.Hub.SendTo(target, data); err != nil {
		reason := metrics.DropBackpressure
		if errors.Is(err, core.ErrNotConnected) {
			reason = metrics.DropUnknownTarget
		}
		o.Metrics.Drop(reason)
		log.Debug().Err(err).Str("module", "orch").Str("kind", string(kind)).
			Str("from", string(from)).Str("target", string(target)).Msg("relay dropped")
		return
	}
	o.Metrics.Relay(string(kind))
	log.Debug().Str("module", "orch").Str("kind", string(kind)).
		Str("from", string(from)).Str("target", string(target)).Msg("relayed")
}
