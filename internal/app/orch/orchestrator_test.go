package orch_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/camrelay/internal/app"
	"github.com/dkeye/camrelay/internal/app/orch"
	"github.com/dkeye/camrelay/internal/core"
	"github.com/dkeye/camrelay/internal/core/coretest"
	"github.com/dkeye/camrelay/internal/domain"
	"github.com/dkeye/camrelay/internal/metrics"
)

type fixture struct {
	o     *orch.Orchestrator
	hub   *core.Hub
	m     *metrics.Metrics
	conns map[domain.ConnID]*coretest.Conn
}

func newFixture(t *testing.T, ids ...domain.ConnID) *fixture {
	t.Helper()
	reg := app.NewRegistry()
	hub := core.NewHub()
	m := metrics.New(prometheus.NewRegistry(), nil)
	f := &fixture{
		o:     orch.New(reg, hub, app.SimplePolicy{}, m),
		hub:   hub,
		m:     m,
		conns: make(map[domain.ConnID]*coretest.Conn),
	}
	for _, id := range ids {
		f.connect(id)
	}
	return f
}

func (f *fixture) connect(id domain.ConnID) *coretest.Conn {
	c := &coretest.Conn{}
	f.conns[id] = c
	f.o.OnConnect(id, c)
	return c
}

func (f *fixture) reset() {
	for _, c := range f.conns {
		c.Reset()
	}
}

func TestOnConnect_SendsHello(t *testing.T) {
	f := newFixture(t, "a")
	hello := f.conns["a"].OfType(orch.TypeHello)
	require.Len(t, hello, 1)
	assert.Equal(t, "a", hello[0]["conn_id"])
	assert.True(t, f.o.Registry.Connected("a"))
}

func TestStartStream_NotifiesRequesterAndBroadcasts(t *testing.T) {
	f := newFixture(t, "s1", "other")
	f.reset()

	cam, err := f.o.StartStream("s1")
	require.NoError(t, err)

	started := f.conns["s1"].OfType(orch.TypeStarted)
	require.Len(t, started, 1)
	assert.Equal(t, string(cam.ID), started[0]["camera_id"])
	assert.Equal(t, cam.Name, started[0]["camera_name"])
	assert.Empty(t, f.conns["other"].OfType(orch.TypeStarted))

	for _, id := range []domain.ConnID{"s1", "other"} {
		lists := f.conns[id].OfType(orch.TypeListUpdated)
		require.Len(t, lists, 1, "conn %s", id)
		assert.Equal(t, []any{string(cam.ID)}, lists[0]["cameras"])
	}
}

func TestJoinCamera_UnknownReportsToRequesterOnly(t *testing.T) {
	f := newFixture(t, "s1", "v1")
	_, err := f.o.StartStream("s1")
	require.NoError(t, err)
	f.reset()

	err = f.o.JoinCamera("v1", "missing")
	assert.ErrorIs(t, err, domain.ErrCameraNotFound)

	errs := f.conns["v1"].OfType(orch.TypeError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Camera not found", errs[0]["message"])
	assert.Empty(t, f.conns["s1"].Messages())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.JoinErrors))

	cams := f.o.Registry.List()
	require.Len(t, cams, 1)
	assert.Equal(t, 0, cams[0].Viewers)
}

func TestJoinCamera_NotifiesOwnerWithoutBroadcast(t *testing.T) {
	f := newFixture(t, "s1", "v1", "bystander")
	cam, _ := f.o.StartStream("s1")
	f.reset()

	require.NoError(t, f.o.JoinCamera("v1", cam.ID))

	viewers := f.conns["s1"].OfType(orch.TypeNewViewer)
	require.Len(t, viewers, 1)
	assert.Equal(t, "v1", viewers[0]["viewer_id"])
	for _, c := range f.conns {
		assert.Empty(t, c.OfType(orch.TypeListUpdated))
	}
	assert.ElementsMatch(t, []domain.ConnID{"s1", "v1"}, f.hub.GroupMembers("camera:"+string(cam.ID)))
}

func TestDisconnectViewer_DecrementsWithoutBroadcast(t *testing.T) {
	f := newFixture(t, "s1", "v1")
	cam, _ := f.o.StartStream("s1")
	require.NoError(t, f.o.JoinCamera("v1", cam.ID))
	f.reset()

	f.o.OnDisconnect("v1")
	f.o.OnDisconnect("v1")

	got, ok := f.o.Registry.Get(cam.ID)
	require.True(t, ok)
	assert.Equal(t, 0, got.Viewers)
	assert.Empty(t, f.conns["s1"].Messages())
}

func TestDisconnectStreamer_SingleBroadcastAndStreamEnded(t *testing.T) {
	f := newFixture(t, "s1", "s2", "v1")
	a, _ := f.o.StartStream("s1")
	b, _ := f.o.StartStream("s2")
	require.NoError(t, f.o.JoinCamera("v1", a.ID))
	f.reset()

	f.o.OnDisconnect("s1")

	for _, id := range []domain.ConnID{"s2", "v1"} {
		lists := f.conns[id].OfType(orch.TypeListUpdated)
		require.Len(t, lists, 1, "conn %s", id)
		assert.Equal(t, []any{string(b.ID)}, lists[0]["cameras"])
	}
	ended := f.conns["v1"].OfType(orch.TypeStreamEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, string(a.ID), ended[0]["camera_id"])
	assert.Empty(t, f.conns["s2"].OfType(orch.TypeStreamEnded))
	assert.Empty(t, f.conns["s1"].Messages())
}

func TestRelay_DeliversToTargetOnly(t *testing.T) {
	f := newFixture(t, "a", "b", "c")
	f.reset()

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	f.o.Relay(orch.KindOffer, "a", "b", payload)

	offers := f.conns["b"].OfType("offer")
	require.Len(t, offers, 1)
	assert.Equal(t, "a", offers[0]["from"])
	assert.Equal(t, map[string]any{"type": "offer", "sdp": "v=0"}, offers[0]["offer"])
	assert.Empty(t, f.conns["a"].Messages())
	assert.Empty(t, f.conns["c"].Messages())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Relayed.WithLabelValues("offer")))
}

func TestRelay_CandidateUsesCandidateField(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.reset()

	f.o.Relay(orch.KindICECandidate, "a", "b", json.RawMessage(`"candidate:1 1 udp"`))
	got := f.conns["b"].OfType("ice_candidate")
	require.Len(t, got, 1)
	assert.Equal(t, "candidate:1 1 udp", got[0]["candidate"])
}

func TestRelay_EmptyTargetIgnored(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.reset()

	f.o.Relay(orch.KindICECandidate, "a", "", json.RawMessage(`{}`))
	for _, c := range f.conns {
		assert.Empty(t, c.Messages())
	}
}

func TestRelay_GoneTargetDroppedSilently(t *testing.T) {
	f := newFixture(t, "a", "b")
	f.o.OnDisconnect("b")
	f.reset()

	f.o.Relay(orch.KindAnswer, "a", "b", json.RawMessage(`{}`))
	assert.Empty(t, f.conns["a"].Messages())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.m.Dropped.WithLabelValues(metrics.DropUnknownTarget)))
}

func TestBroadcast_SlowConnectionKicked(t *testing.T) {
	f := newFixture(t, "s1", "slow")
	f.conns["slow"].Full = true

	_, err := f.o.StartStream("s1")
	require.NoError(t, err)
	assert.True(t, f.conns["slow"].Closed())
	assert.False(t, f.conns["s1"].Closed())
}

func TestHeartbeat(t *testing.T) {
	f := newFixture(t, "s1", "v1")
	cam, _ := f.o.StartStream("s1")
	require.NoError(t, f.o.JoinCamera("v1", cam.ID))
	f.reset()

	f.o.Heartbeat("s1", cam.ID)
	acks := f.conns["s1"].OfType(orch.TypeHeartbeatAck)
	require.Len(t, acks, 1)
	assert.Equal(t, "alive", acks[0]["status"])
	assert.Equal(t, 1.0, acks[0]["viewers"])

	f.o.Heartbeat("v1", cam.ID)
	acks = f.conns["v1"].OfType(orch.TypeHeartbeatAck)
	require.Len(t, acks, 1)
	assert.Equal(t, "unknown", acks[0]["status"])
}

func TestScenario_StreamJoinOfferDisconnect(t *testing.T) {
	f := newFixture(t, "S1", "V1")

	cam, err := f.o.StartStream("S1")
	require.NoError(t, err)
	got, _ := f.o.Registry.Get(cam.ID)
	assert.Equal(t, 0, got.Viewers)

	require.NoError(t, f.o.JoinCamera("V1", cam.ID))
	got, _ = f.o.Registry.Get(cam.ID)
	assert.Equal(t, 1, got.Viewers)
	require.Len(t, f.conns["S1"].OfType(orch.TypeNewViewer), 1)

	f.o.Relay(orch.KindOffer, "V1", "S1", json.RawMessage(`{"sdp":"x"}`))
	offers := f.conns["S1"].OfType("offer")
	require.Len(t, offers, 1)
	assert.Equal(t, "V1", offers[0]["from"])

	f.reset()
	f.o.OnDisconnect("S1")
	_, ok := f.o.Registry.Get(cam.ID)
	assert.False(t, ok)
	lists := f.conns["V1"].OfType(orch.TypeListUpdated)
	require.Len(t, lists, 1)
	assert.Empty(t, lists[0]["cameras"])

	f.o.LeaveCamera("V1", cam.ID)
	role, _, _ := f.o.Registry.RoleOf("V1")
	assert.Equal(t, app.RoleIdle, role)
}

func TestConcurrentLifecycle(t *testing.T) {
	f := newFixture(t, "s1")
	cam, _ := f.o.StartStream("s1")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		id := domain.ConnID("v" + string(rune('a'+i)))
		f.connect(id)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.o.JoinCamera(id, cam.ID)
			f.o.Relay(orch.KindAnswer, id, "s1", json.RawMessage(`{}`))
			f.o.OnDisconnect(id)
		}()
	}
	wg.Wait()

	got, ok := f.o.Registry.Get(cam.ID)
	require.True(t, ok)
	assert.Equal(t, 0, got.Viewers)
	assert.Equal(t, []domain.ConnID{"s1"}, f.hub.GroupMembers("camera:"+string(cam.ID)))
}
