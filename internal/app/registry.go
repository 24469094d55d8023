package app

import (
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/camrelay/internal/domain"
)

// maxGenerateAttempts bounds the collision-retry loops for camera ids and
// names. Both spaces are far larger than any live set, so running out means
// the generator is broken.
const maxGenerateAttempts = 64

type Role int

const (
	RoleIdle Role = iota
	RoleStreaming
	RoleViewing
)

func (r Role) String() string {
	switch r {
	case RoleStreaming:
		return "streaming"
	case RoleViewing:
		return "viewing"
	default:
		return "idle"
	}
}

// connState is the tagged role of one connection. camera is set for
// RoleStreaming and RoleViewing only.
type connState struct {
	role   Role
	camera domain.CameraID
}

// Removal describes a camera that went away together with the viewers whose
// membership was dropped along with it.
type Removal struct {
	Camera   domain.Camera
	Orphaned []domain.ConnID
}

type StartResult struct {
	Camera domain.Camera
	// Left is the camera the owner was viewing before it started streaming.
	Left domain.CameraID
	// Replaced is the owner's previous camera, if it was already streaming.
	Replaced *Removal
}

type JoinResult struct {
	Camera domain.Camera
	// Left is the camera the viewer was moved away from, if any.
	Left     domain.CameraID
	Rejoined bool
}

type DisconnectResult struct {
	Known   bool
	Viewed  domain.CameraID
	Removed *Removal
}

type Stats struct {
	Cameras     int
	Connections int
	Viewers     int
}

type Option func(*Registry)

func WithClock(c clockwork.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

func WithIDGenerator(f func() domain.CameraID) Option {
	return func(r *Registry) { r.newID = f }
}

func WithNameGenerator(f func() string) Option {
	return func(r *Registry) { r.newName = f }
}

// Registry owns cameras, connection roles and viewer counts. Every mutation
// and every snapshot goes through mu, so a viewer count and its membership
// edges are never observed out of step.
type Registry struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	newID   func() domain.CameraID
	newName func() string

	cameras map[domain.CameraID]*domain.Camera
	names   map[string]struct{}
	conns   map[domain.ConnID]connState
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clock:   clockwork.NewRealClock(),
		newID:   domain.NewCameraID,
		newName: domain.NewCameraName,
		cameras: make(map[domain.CameraID]*domain.Camera),
		names:   make(map[string]struct{}),
		conns:   make(map[domain.ConnID]connState),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers id as Idle. It reports false if id was already known.
func (r *Registry) Connect(id domain.ConnID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[id]; ok {
		return false
	}
	r.conns[id] = connState{role: RoleIdle}
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Msg("connected")
	return true
}

func (r *Registry) Connected(id domain.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

func (r *Registry) RoleOf(id domain.ConnID) (Role, domain.CameraID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.conns[id]
	return st.role, st.camera, ok
}

// StartCamera creates a camera owned by owner. A viewer is moved out of the
// camera it watches first; a streamer's previous camera is torn down.
func (r *Registry) StartCamera(owner domain.ConnID) (StartResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.conns[owner]
	if !ok {
		return StartResult{}, domain.ErrUnknownConn
	}

	var res StartResult
	switch st.role {
	case RoleViewing:
		r.leaveLocked(owner, st.camera)
		res.Left = st.camera
	case RoleStreaming:
		if rm, ok := r.removeLocked(st.camera); ok {
			res.Replaced = &rm
		}
	}

	cam := &domain.Camera{
		ID:        r.uniqueIDLocked(),
		Name:      r.uniqueNameLocked(),
		Owner:     owner,
		CreatedAt: r.clock.Now(),
	}
	r.cameras[cam.ID] = cam
	r.names[cam.Name] = struct{}{}
	r.conns[owner] = connState{role: RoleStreaming, camera: cam.ID}
	res.Camera = *cam

	log.Info().Str("module", "app.registry").Str("conn", string(owner)).
		Str("camera", string(cam.ID)).Str("name", cam.Name).Msg("camera created")
	return res, nil
}

func (r *Registry) uniqueIDLocked() domain.CameraID {
	for i := 0; i < maxGenerateAttempts; i++ {
		id := r.newID()
		if _, taken := r.cameras[id]; !taken && id != "" {
			return id
		}
	}
	panic("app.registry: camera id space exhausted")
}

func (r *Registry) uniqueNameLocked() string {
	for i := 0; i < maxGenerateAttempts; i++ {
		name := r.newName()
		if _, taken := r.names[name]; !taken {
			return name
		}
	}
	panic("app.registry: camera name space exhausted")
}

func (r *Registry) Get(id domain.CameraID) (domain.Camera, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cam, ok := r.cameras[id]
	if !ok {
		return domain.Camera{}, false
	}
	return *cam, true
}

// List returns a snapshot of all cameras, oldest first.
func (r *Registry) List() []domain.Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Camera, 0, len(r.cameras))
	for _, cam := range r.cameras {
		out = append(out, *cam)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) IDs() []domain.CameraID {
	cams := r.List()
	out := make([]domain.CameraID, 0, len(cams))
	for _, cam := range cams {
		out = append(out, cam.ID)
	}
	return out
}

// RemoveCamera tears down id. Removing an unknown id is a no-op.
func (r *Registry) RemoveCamera(id domain.CameraID) (Removal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(id)
}

func (r *Registry) removeLocked(id domain.CameraID) (Removal, bool) {
	cam, ok := r.cameras[id]
	if !ok {
		return Removal{}, false
	}
	delete(r.cameras, id)
	delete(r.names, cam.Name)

	rm := Removal{Camera: *cam}
	for cid, st := range r.conns {
		if st.camera != id {
			continue
		}
		if st.role == RoleViewing {
			rm.Orphaned = append(rm.Orphaned, cid)
		}
		r.conns[cid] = connState{role: RoleIdle}
	}
	sort.Slice(rm.Orphaned, func(i, j int) bool { return rm.Orphaned[i] < rm.Orphaned[j] })
	rm.Camera.Viewers = 0

	log.Info().Str("module", "app.registry").Str("camera", string(id)).
		Int("orphaned", len(rm.Orphaned)).Msg("camera removed")
	return rm, true
}

// Join makes viewer a member of id. A viewer already watching another camera
// leaves it in the same step; streamers cannot join.
func (r *Registry) Join(viewer domain.ConnID, id domain.CameraID) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.conns[viewer]
	if !ok {
		return JoinResult{}, domain.ErrUnknownConn
	}
	cam, ok := r.cameras[id]
	if !ok {
		return JoinResult{}, domain.ErrCameraNotFound
	}
	if st.role == RoleStreaming {
		return JoinResult{}, domain.ErrAlreadyStreaming
	}

	var res JoinResult
	if st.role == RoleViewing {
		if st.camera == id {
			res.Camera = *cam
			res.Rejoined = true
			return res, nil
		}
		r.leaveLocked(viewer, st.camera)
		res.Left = st.camera
	}

	r.conns[viewer] = connState{role: RoleViewing, camera: id}
	r.adjustViewersLocked(id, 1)
	res.Camera = *cam

	log.Info().Str("module", "app.registry").Str("conn", string(viewer)).
		Str("camera", string(id)).Int("viewers", cam.Viewers).Msg("viewer joined")
	return res, nil
}

// Leave drops viewer's membership of id. It reports false and changes
// nothing unless viewer is currently viewing id.
func (r *Registry) Leave(viewer domain.ConnID, id domain.CameraID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cameras[id]; !ok {
		return false
	}
	return r.leaveLocked(viewer, id)
}

func (r *Registry) leaveLocked(viewer domain.ConnID, id domain.CameraID) bool {
	st, ok := r.conns[viewer]
	if !ok || st.role != RoleViewing || st.camera != id {
		return false
	}
	r.conns[viewer] = connState{role: RoleIdle}
	r.adjustViewersLocked(id, -1)
	log.Info().Str("module", "app.registry").Str("conn", string(viewer)).
		Str("camera", string(id)).Msg("viewer left")
	return true
}

// adjustViewersLocked is the only writer of Camera.Viewers. The result is
// clamped at zero and absent cameras are ignored.
func (r *Registry) adjustViewersLocked(id domain.CameraID, delta int) {
	cam, ok := r.cameras[id]
	if !ok {
		return
	}
	cam.Viewers += delta
	if cam.Viewers < 0 {
		cam.Viewers = 0
	}
}

// Disconnect runs the whole cleanup for id in one critical section and
// forgets the identity.
func (r *Registry) Disconnect(id domain.ConnID) DisconnectResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.conns[id]
	if !ok {
		return DisconnectResult{}
	}
	res := DisconnectResult{Known: true}
	switch st.role {
	case RoleViewing:
		if r.leaveLocked(id, st.camera) {
			res.Viewed = st.camera
		}
	case RoleStreaming:
		if rm, ok := r.removeLocked(st.camera); ok {
			res.Removed = &rm
		}
	}
	delete(r.conns, id)
	log.Debug().Str("module", "app.registry").Str("conn", string(id)).Str("role", st.role.String()).Msg("disconnected")
	return res
}

// Heartbeat reports the camera if owner still streams it.
func (r *Registry) Heartbeat(owner domain.ConnID, id domain.CameraID) (domain.Camera, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cam, ok := r.cameras[id]
	if !ok || cam.Owner != owner {
		return domain.Camera{}, false
	}
	return *cam, true
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{Cameras: len(r.cameras), Connections: len(r.conns)}
	for _, cam := range r.cameras {
		s.Viewers += cam.Viewers
	}
	return s
}
