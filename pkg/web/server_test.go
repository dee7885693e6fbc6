package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/internal/log"
	"github.com/teslashibe/go-wayfinder/pkg/geom"
	"github.com/teslashibe/go-wayfinder/pkg/guidance"
	"github.com/teslashibe/go-wayfinder/pkg/navigator"
	"github.com/teslashibe/go-wayfinder/pkg/nodes"
	"github.com/teslashibe/go-wayfinder/pkg/planner"
	"github.com/teslashibe/go-wayfinder/pkg/pose"
	"github.com/teslashibe/go-wayfinder/pkg/protocol"
)

func init() {
	log.Discard()
}

type fixture struct {
	srv  *Server
	nav  *navigator.Navigator
	feed *pose.Feed
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := nodes.NewRegistry(
		&nodes.Node{ID: "N_Lobby", Name: "Lobby", Position: geom.V(0, 0, 0), Forward: geom.Forward},
		&nodes.Node{ID: "N_Cafe", Name: "Cafeteria", Position: geom.V(5, 0, 5), Forward: geom.Forward,
			Waypoints: []geom.Vec3{geom.V(0, 0, 5)}},
	)
	cfg := navigator.DefaultConfig()
	cfg.Navigation.UpdateInterval = 10 * time.Millisecond
	cfg.ReadinessTimeout = time.Second

	feed := pose.NewFeed()
	nav := navigator.New(cfg, reg, planner.NewWaypointPlanner(reg), feed)

	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan error, 1)
	go func() { exited <- nav.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-exited
	})

	return &fixture{
		srv:  NewServer(Options{Port: "0"}, nav, reg, feed),
		nav:  nav,
		feed: feed,
	}
}

func (f *fixture) track() {
	f.feed.SetState(pose.StateTracking)
	f.feed.SetPose(pose.Pose{Position: geom.V(0, 1.5, 0), Forward: geom.Forward})
}

func (f *fixture) do(t *testing.T, method, target, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.srv.App().Test(req, 2000)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestHealthAndNodes(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
	assert.Contains(t, body, `"nodes":2`)

	resp, body = f.do(t, "GET", "/api/nodes", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "N_Cafe")
	assert.Contains(t, body, "Cafeteria")
}

func TestCommand_MalformedIsIgnored(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{
		``,
		`not json`,
		`{"action":"fly"}`,
		`{"action":"calibrate"}`,
		`{"action":"start_navigation","start":"N_Lobby"}`,
	} {
		resp, _ := f.do(t, "POST", "/api/commands", body)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode, "body %q", body)
	}
	assert.Equal(t, guidance.Empty(), f.nav.Snapshot())
}

func TestCommand_GetStateAnswersDirectly(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "POST", "/api/commands", `{"action":"get_navigation_state"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"instruction":"","distance":-1,"arrived":false}`, body)

	resp, body = f.do(t, "GET", "/api/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"instruction":"","distance":-1,"arrived":false}`, body)
}

func TestCommand_CalibrateAndStartWithWait(t *testing.T) {
	f := newFixture(t)
	f.track()

	resp, body := f.do(t, "POST", "/api/commands?wait=true", `{"action":"calibrate","nodeId":"N_Lobby"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res CommandResult
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Empty(t, res.Error)

	resp, body = f.do(t, "POST", "/api/commands?wait=true", `{"action":"start_navigation","destination":"Cafeteria"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = CommandResult{}
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Empty(t, res.Error)
	assert.NotEmpty(t, res.State.Instruction)
	assert.InDelta(t, 10.0, res.State.Distance, 1e-9)
	assert.False(t, res.State.Arrived)

	resp, body = f.do(t, "GET", "/api/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess SessionResponse
	require.NoError(t, json.Unmarshal([]byte(body), &sess))
	assert.True(t, sess.Active)
	require.NotNil(t, sess.Session)
	assert.Equal(t, "N_Cafe", sess.Session.Destination)
	assert.True(t, sess.Calibration.Calibrated)
	assert.Equal(t, "N_Lobby", sess.Calibration.Anchor)
	assert.True(t, sess.Ready)
	assert.Equal(t, "tracking", sess.Tracking)
}

func TestCommand_WaitReportsFailure(t *testing.T) {
	f := newFixture(t)
	f.track()

	resp, body := f.do(t, "POST", "/api/commands?wait=true", `{"action":"start_navigation","destination":"N_Cafe"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res CommandResult
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Contains(t, res.Error, "requires calibration")
}

func TestCommand_SubmitIsAccepted(t *testing.T) {
	f := newFixture(t)
	f.track()

	resp, _ := f.do(t, "POST", "/api/commands", `{"action":"calibrate","nodeId":"N_Lobby"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool { return f.nav.Calibration().Calibrated }, time.Second, 5*time.Millisecond)

	resp, _ = f.do(t, "POST", "/api/commands", `{"action":"stop_navigation"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Eventually(t, func() bool { return !f.nav.Calibration().Calibrated }, time.Second, 5*time.Millisecond)
}

func TestSession_Idle(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, "GET", "/api/session", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess SessionResponse
	require.NoError(t, json.Unmarshal([]byte(body), &sess))
	assert.False(t, sess.Active)
	assert.Nil(t, sess.Session)
	assert.False(t, sess.Ready)
	assert.Equal(t, "none", sess.Tracking)
}

func TestBridgeRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, "GET", "/ws/bridge", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func serve(t *testing.T, f *fixture) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, f.srv.Bridge().IsRunning, time.Second, time.Millisecond)
	return "ws://" + ln.Addr().String()
}

func readJSON(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestBridge_ARReadyAndState(t *testing.T) {
	f := newFixture(t)
	base := serve(t, f)

	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/bridge", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return f.srv.Bridge().ClientCount() == 1 }, time.Second, time.Millisecond)

	f.track()
	var ev protocol.Event
	readJSON(t, ws, &ev)
	assert.Equal(t, protocol.ARReady(), ev)

	// Malformed frames get no reply; the next reply is the state.
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"action":"dance"}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"action":"get_navigation_state"}`)))
	var state guidance.State
	readJSON(t, ws, &state)
	assert.Equal(t, guidance.Empty(), state)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"action":"calibrate","nodeId":"N_Lobby"}`)))
	require.Eventually(t, func() bool { return f.nav.Calibration().Calibrated }, time.Second, 5*time.Millisecond)
}

func TestBridge_LateHostGetsARReady(t *testing.T) {
	f := newFixture(t)
	base := serve(t, f)
	f.track()

	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/bridge", nil)
	require.NoError(t, err)
	defer ws.Close()

	var ev protocol.Event
	readJSON(t, ws, &ev)
	assert.Equal(t, protocol.EventARReady, ev.EventType)
}

func TestTrackerFeedsNavigator(t *testing.T) {
	f := newFixture(t)
	base := serve(t, f)

	ws, _, err := websocket.DefaultDialer.Dial(base+"/ws/tracker/phone", nil)
	require.NoError(t, err)
	defer ws.Close()

	state, _ := protocol.NewTrackingStateMessage(pose.StateTracking)
	p, _ := protocol.NewPoseMessage(pose.Pose{Position: geom.V(0, 1.5, 0), Forward: geom.Forward})
	for _, m := range []*protocol.Message{state, p} {
		data, err := m.Bytes()
		require.NoError(t, err)
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
	}

	require.Eventually(t, f.feed.Ready, time.Second, 5*time.Millisecond)

	resp, body := f.do(t, "GET", "/api/trackers/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"id":"phone"`)
}
