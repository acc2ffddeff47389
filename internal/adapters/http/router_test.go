package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/adapters/embed"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/recent"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu       sync.Mutex
	view     orch.View
	startErr error
	calls    []string
	signals  []embed.Signal
	subs     []func(orch.View)
	recent   recent.List
}

func (f *fakeController) record(name string) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
}

func (f *fakeController) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) User() *domain.LocalUser {
	return &domain.LocalUser{ID: "u1", DisplayName: "Ann"}
}

func (f *fakeController) Snapshot() orch.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeController) Subscribe(fn func(orch.View)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
	return func() {}
}

func (f *fakeController) publish(v orch.View) {
	f.mu.Lock()
	f.view = v
	subs := append([]func(orch.View){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

func (f *fakeController) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeController) Start(_ context.Context, roomID domain.RoomID, password string) error {
	f.record("start:" + string(roomID) + ":" + password)
	return f.startErr
}

func (f *fakeController) SubmitPassword(_ context.Context, password string) error {
	f.record("password:" + password)
	return nil
}

func (f *fakeController) Leave() error { f.record("leave"); return nil }
func (f *fakeController) End() error   { f.record("end"); return core.ErrNotHost }
func (f *fakeController) Unload()      { f.record("unload") }

func (f *fakeController) ToggleMic() error  { f.record("mic"); return nil }
func (f *fakeController) ToggleCam() error  { f.record("cam"); return nil }
func (f *fakeController) ToggleHand() error { f.record("hand"); return nil }
func (f *fakeController) SendChat(m string) error {
	f.record("chat:" + m)
	return nil
}

func (f *fakeController) ForceMic(target domain.UserID, muted bool) error {
	f.record("force_mic:" + string(target))
	return nil
}

func (f *fakeController) ForceCam(target domain.UserID, off bool) error {
	f.record("force_cam:" + string(target))
	return orch.ErrNoSession
}

func (f *fakeController) OnEmbedSignal(sig embed.Signal) {
	f.mu.Lock()
	f.signals = append(f.signals, sig)
	f.mu.Unlock()
}

func (f *fakeController) RetryEmbed() (string, error) {
	return "https://sfu.example.com/join?retry=1", nil
}

func (f *fakeController) CreateRoom(_ context.Context, in domain.CreateRoom) (domain.CreatedRoom, error) {
	f.record("create:" + in.Title)
	return domain.CreatedRoom{RoomID: "r9", JoinLink: "/room/r9"}, nil
}

func (f *fakeController) Recent(context.Context) (recent.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recent, nil
}

func newTestServer(t *testing.T, ctl *fakeController) (*httptest.Server, *http.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Mode: "test", Secret: "test-secret", EmbedOrigin: "https://sfu.example.com"}
	srv := httptest.NewServer(SetupRouter(context.Background(), cfg, ctl))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return srv, &http.Client{Jar: jar}
}

func post(t *testing.T, c *http.Client, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := c.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestStartAndSession(t *testing.T) {
	ctl := &fakeController{view: orch.View{State: orch.StateInSession, RoomID: "r1"}}
	srv, c := newTestServer(t, ctl)

	resp, body := post(t, c, srv.URL+"/api/session/start", `{"room_id":"r1","password":"pw"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "in_session", body["state"])
	assert.Equal(t, []string{"start:r1:pw"}, ctl.called())

	resp, _ = post(t, c, srv.URL+"/api/session/start", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	get, err := c.Get(srv.URL + "/api/session")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
}

func TestRedirectFailureSuggestsRoom(t *testing.T) {
	ctl := &fakeController{startErr: &orch.Failure{Kind: orch.Redirect, Title: "Room Full", Message: "full", RoomCode: "r1"}}
	srv, c := newTestServer(t, ctl)

	resp, body := post(t, c, srv.URL+"/api/session/start", `{"room_id":"r1"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "full", body["error"])

	get, err := c.Get(srv.URL + "/api/dashboard")
	require.NoError(t, err)
	var dash map[string]any
	require.NoError(t, json.NewDecoder(get.Body).Decode(&dash))
	get.Body.Close()
	assert.Equal(t, "r1", dash["suggested_room_code"])
	assert.Equal(t, []any{}, dash["recent"])

	get, err = c.Get(srv.URL + "/api/dashboard")
	require.NoError(t, err)
	dash = nil
	require.NoError(t, json.NewDecoder(get.Body).Decode(&dash))
	get.Body.Close()
	assert.Equal(t, "", dash["suggested_room_code"])
}

func TestActions(t *testing.T) {
	ctl := &fakeController{}
	srv, c := newTestServer(t, ctl)

	cases := []struct {
		body   string
		status int
	}{
		{`{"action":"toggle_mic"}`, http.StatusOK},
		{`{"action":"toggle_cam"}`, http.StatusOK},
		{`{"action":"toggle_hand"}`, http.StatusOK},
		{`{"action":"chat_message","message":"hi"}`, http.StatusOK},
		{`{"action":"host_force_mic","target_user_id":"a","muted":true}`, http.StatusOK},
		{`{"action":"host_force_mic","target_user_id":"a"}`, http.StatusBadRequest},
		{`{"action":"host_force_cam","target_user_id":"a","off":true}`, http.StatusConflict},
		{`{"action":"dance"}`, http.StatusBadRequest},
		{`{}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.body, func(t *testing.T) {
			resp, _ := post(t, c, srv.URL+"/api/session/actions", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
	assert.Equal(t, []string{"mic", "cam", "hand", "chat:hi", "force_mic:a", "force_cam:a"}, ctl.called())
}

func TestLifecycleEndpoints(t *testing.T) {
	ctl := &fakeController{}
	srv, c := newTestServer(t, ctl)

	resp, _ := post(t, c, srv.URL+"/api/session/leave", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = post(t, c, srv.URL+"/api/session/end", ``)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = post(t, c, srv.URL+"/api/session/unload", ``)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp, _ = post(t, c, srv.URL+"/api/session/password", `{"password":"pw"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := post(t, c, srv.URL+"/api/session/embed/retry", ``)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["embed_url"], "retry=1")

	assert.Equal(t, []string{"leave", "end", "unload", "password:pw"}, ctl.called())
}

func TestEmbedMessage(t *testing.T) {
	ctl := &fakeController{}
	srv, c := newTestServer(t, ctl)

	resp, _ := post(t, c, srv.URL+"/api/embed/message", `{"origin":"https://evil.example","data":{"type":"leave"}}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := post(t, c, srv.URL+"/api/embed/message", `{"origin":"https://sfu.example.com","data":{"type":"leave"}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "left", body["signal"])

	resp, body = post(t, c, srv.URL+"/api/embed/message", `{"origin":"https://sfu.example.com","data":"ready"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "activity", body["signal"])

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	assert.Equal(t, []embed.Signal{embed.SignalLeft, embed.SignalActivity}, ctl.signals)
}

func TestCreateRoomAndRecent(t *testing.T) {
	ctl := &fakeController{recent: recent.List{{RoomID: "r9", Title: "Sync", IsHost: true}}}
	srv, c := newTestServer(t, ctl)

	resp, body := post(t, c, srv.URL+"/api/rooms", `{"room_title":"Sync","max_participants":10}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "r9", body["room_id"])

	resp, _ = post(t, c, srv.URL+"/api/rooms", `{"max_participants":1000}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	get, err := c.Get(srv.URL + "/api/recent")
	require.NoError(t, err)
	var list []domain.RecentRoom
	require.NoError(t, json.NewDecoder(get.Body).Decode(&list))
	get.Body.Close()
	require.Len(t, list, 1)
	assert.True(t, list[0].IsHost)
}

func TestClientTokenCookie(t *testing.T) {
	srv, c := newTestServer(t, &fakeController{})
	resp, err := c.Get(srv.URL + "/api/session")
	require.NoError(t, err)
	resp.Body.Close()

	var token string
	for _, ck := range resp.Cookies() {
		if ck.Name == "ct" {
			token = ck.Value
		}
	}
	assert.Len(t, token, 36)
}

func TestUpdatesStream(t *testing.T) {
	ctl := &fakeController{view: orch.View{State: orch.StateIdle}}
	srv, _ := newTestServer(t, ctl)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/updates"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var v orch.View
	require.NoError(t, conn.ReadJSON(&v))
	assert.Equal(t, orch.StateIdle, v.State)

	require.Eventually(t, func() bool { return ctl.subscribers() == 1 }, time.Second, 5*time.Millisecond)
	ctl.publish(orch.View{State: orch.StateInSession, RoomID: "r1"})
	require.NoError(t, conn.ReadJSON(&v))
	assert.Equal(t, orch.StateInSession, v.State)
	assert.Equal(t, domain.RoomID("r1"), v.RoomID)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusOf(&orch.Failure{Kind: orch.PasswordRetry}))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(&orch.Failure{Kind: orch.Retryable}))
	assert.Equal(t, http.StatusUnauthorized, statusOf(&orch.Failure{Kind: orch.Terminal, Err: core.ErrUnauthorized}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(&orch.Failure{Kind: orch.Terminal}))
	assert.Equal(t, http.StatusBadRequest, statusOf(orch.ErrEmptyMessage))
	assert.Equal(t, http.StatusBadGateway, statusOf(&core.RestRejectedError{Status: 418}))
}
