// Package rtc builds the WebRTC configuration handed to browsers. The server
// never opens peer connections itself.
package rtc

import (
	"fmt"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/config"
)

// ICEServer mirrors the browser's RTCIceServer dictionary.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ClientConfig is served to browsers as their RTCConfiguration.
type ClientConfig struct {
	ICEServers         []ICEServer `json:"iceServers"`
	ICETransportPolicy string      `json:"iceTransportPolicy"`
}

// NewClientConfig validates every configured STUN/TURN url and the transport
// policy. TURN entries must carry credentials.
func NewClientConfig(servers []config.ICEServer, policy string) (*ClientConfig, error) {
	p := webrtc.NewICETransportPolicy(policy)
	if p.String() != policy {
		return nil, fmt.Errorf("unknown ice transport policy %q", policy)
	}

	out := &ClientConfig{
		ICEServers:         make([]ICEServer, 0, len(servers)),
		ICETransportPolicy: p.String(),
	}
	for i, s := range servers {
		if len(s.URLs) == 0 {
			return nil, fmt.Errorf("ice server %d: no urls", i)
		}
		for _, raw := range s.URLs {
			u, err := stun.ParseURI(raw)
			if err != nil {
				return nil, fmt.Errorf("ice server %d: %q: %w", i, raw, err)
			}
			if (u.Scheme == stun.SchemeTypeTURN || u.Scheme == stun.SchemeTypeTURNS) &&
				(s.Username == "" || s.Credential == "") {
				return nil, fmt.Errorf("ice server %d: %q requires username and credential", i, raw)
			}
		}
		out.ICEServers = append(out.ICEServers, ICEServer{
			URLs:       append([]string(nil), s.URLs...),
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	log.Info().Str("module", "rtc").Int("ice_servers", len(out.ICEServers)).Str("policy", out.ICETransportPolicy).Msg("ice config ready")
	return out, nil
}
