package core

import (
	"sync"

	"github.com/dkeye/camrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Hub is the threadsafe directory of attached connections and their
// notification groups. It never closes adapter-owned resources except on Kick.
type Hub struct {
	mu     sync.RWMutex
	conns  map[domain.ConnID]SignalConnection
	groups map[string]map[domain.ConnID]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[domain.ConnID]SignalConnection),
		groups: make(map[string]map[domain.ConnID]struct{}),
	}
}

func (h *Hub) Attach(id domain.ConnID, conn SignalConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[id] = conn
	log.Debug().Str("module", "core.hub").Str("conn", string(id)).Msg("attached")
}

// Detach forgets id and removes it from every group.
func (h *Hub) Detach(id domain.ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
	for key, members := range h.groups {
		delete(members, id)
		if len(members) == 0 {
			delete(h.groups, key)
		}
	}
	log.Debug().Str("module", "core.hub").Str("conn", string(id)).Msg("detached")
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) SendTo(id domain.ConnID, data Frame) error {
	h.mu.RLock()
	conn, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return conn.TrySend(data)
}

func (h *Hub) Broadcast(data Frame) PublishResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := PublishResult{}
	for id, conn := range h.conns {
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.hub").Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// Publish fans data out to every attached member of group except from.
func (h *Hub) Publish(group string, from domain.ConnID, data Frame) PublishResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := PublishResult{}
	for id := range h.groups[group] {
		if id == from {
			continue
		}
		conn, ok := h.conns[id]
		if !ok {
			continue
		}
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	return res
}

func (h *Hub) JoinGroup(id domain.ConnID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[id]; !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[domain.ConnID]struct{})
		h.groups[group] = members
	}
	members[id] = struct{}{}
}

func (h *Hub) LeaveGroup(id domain.ConnID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

func (h *Hub) DropGroup(group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups, group)
}

func (h *Hub) GroupMembers(group string) []domain.ConnID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.ConnID, 0, len(h.groups[group]))
	for id := range h.groups[group] {
		out = append(out, id)
	}
	return out
}

// Kick closes the transport of id. The adapter's read loop then reports the
// disconnect through the usual path.
func (h *Hub) Kick(id domain.ConnID) {
	h.mu.RLock()
	conn, ok := h.conns[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	log.Info().Str("module", "core.hub").Str("conn", string(id)).Msg("kick")
	conn.Close()
}
