package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/kalambet/siampass/internal/arbridge"
	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/loyalty"
	"github.com/kalambet/siampass/internal/nav"
	"github.com/kalambet/siampass/internal/recommend"
	"github.com/kalambet/siampass/internal/tracker"
)

type testApp struct {
	handler http.Handler
	guide   *fakeGuide
	loyalty *loyalty.Manager
	hub     *tracker.Hub
	nav     *nav.Controller
}

func newTestApp(t *testing.T, token string) *testApp {
	t.Helper()
	g := newFakeGuide()
	loy := newTestLoyalty(t)
	hub := tracker.NewHub()
	target := arbridge.Target{MarkerURL: testMarker, ModelURL: "https://example.com/raccoon.gltf"}

	ctrl := nav.New(nav.Deps{
		NewChat:         func() *chat.Session { return chat.NewSession(g, "Sawasdee!") },
		Recommendations: recommend.NewCache(g),
		NewBridge: func() *arbridge.Bridge {
			b := arbridge.New(hub, target)
			b.OnLock(func(tg arbridge.Target) {
				if _, err := loy.CollectMarker(tg.MarkerURL); err != nil {
					t.Errorf("collecting marker stamp: %v", err)
				}
			})
			return b
		},
	})
	t.Cleanup(ctrl.Close)

	h := NewAppHandler(AppDeps{
		Nav:      ctrl,
		Loyalty:  loy,
		AREvents: hub.Handler(),
		Token:    token,
	})
	return &testApp{handler: h, guide: g, loyalty: loy, hub: hub, nav: ctrl}
}

func (a *testApp) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(method, path, r))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]map[string]string](t, rr)
	return body["error"]["type"]
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, "")
	rr := app.do(t, http.MethodGet, "/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decode[map[string]string](t, rr)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestBearerAuth(t *testing.T) {
	app := newTestApp(t, "secret")

	rr := app.do(t, http.MethodGet, "/state", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if typ := errorType(t, rr); typ != "authentication_error" {
		t.Errorf("error type = %q, want authentication_error", typ)
	}

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authorized status = %d, want %d", rr.Code, http.StatusOK)
	}

	if rr := app.do(t, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d without a token", rr.Code, http.StatusOK)
	}
}

func TestState_Initial(t *testing.T) {
	app := newTestApp(t, "")
	st := decode[nav.State](t, app.do(t, http.MethodGet, "/state", ""))

	if st.View != nav.ViewHome || st.OverlayAR || st.Modal.Kind != nav.ModalNone {
		t.Errorf("state = %+v, want home with nothing open", st)
	}
	if st.Tracking != nil || st.Map != nil {
		t.Errorf("state = %+v, want no tracking and no map", st)
	}
}

func TestSelectView(t *testing.T) {
	app := newTestApp(t, "")

	rr := app.do(t, http.MethodPut, "/view", `{"view":"museum"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	rr = app.do(t, http.MethodPut, "/view", `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = app.do(t, http.MethodPut, "/view", `{"view":"profile"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if st := decode[nav.State](t, rr); st.View != nav.ViewProfile {
		t.Errorf("view = %q, want profile", st.View)
	}
}

func TestChat_RequiresChatView(t *testing.T) {
	app := newTestApp(t, "")

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rr := app.do(t, method, "/chat/messages", `{"text":"hi"}`)
		if rr.Code != http.StatusConflict {
			t.Errorf("%s status = %d, want %d", method, rr.Code, http.StatusConflict)
		}
	}
}

func TestChat_Exchange(t *testing.T) {
	app := newTestApp(t, "")
	app.do(t, http.MethodPut, "/view", `{"view":"chat"}`)

	st := decode[chatResponse](t, app.do(t, http.MethodGet, "/chat/messages", ""))
	if st.SessionID != "session-1" {
		t.Errorf("sessionId = %q, want session-1", st.SessionID)
	}
	if len(st.Messages) != 1 || st.Messages[0].Text != "Sawasdee!" {
		t.Fatalf("messages = %+v, want only the greeting", st.Messages)
	}

	rr := app.do(t, http.MethodPost, "/chat/messages", `{"text":"  "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = app.do(t, http.MethodPost, "/chat/messages", `{"text":"Best khao soi?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	st = decode[chatResponse](t, rr)
	if st.AwaitingReply {
		t.Error("awaitingReply = true after the exchange")
	}
	if len(st.Messages) != 3 {
		t.Fatalf("messages = %+v, want greeting, question, reply", st.Messages)
	}
	if st.Messages[1].Role != chat.RoleUser || st.Messages[2].Text != "Namfon says: Best khao soi?" {
		t.Errorf("messages = %+v", st.Messages)
	}
}

func TestChat_BackendFailureKeepsUserMessage(t *testing.T) {
	app := newTestApp(t, "")
	app.do(t, http.MethodPut, "/view", `{"view":"chat"}`)
	app.guide.mu.Lock()
	app.guide.replyErr = errors.New("offline")
	app.guide.mu.Unlock()

	rr := app.do(t, http.MethodPost, "/chat/messages", `{"text":"hello?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	st := decode[chatResponse](t, rr)
	if st.AwaitingReply {
		t.Error("awaitingReply = true after a failed exchange")
	}
	if len(st.Messages) != 2 || st.Messages[1].Text != "hello?" {
		t.Errorf("messages = %+v, want greeting and the unanswered question", st.Messages)
	}
}

func TestChat_LeavingViewDiscardsHistory(t *testing.T) {
	app := newTestApp(t, "")
	app.do(t, http.MethodPut, "/view", `{"view":"chat"}`)
	app.do(t, http.MethodPost, "/chat/messages", `{"text":"first visit"}`)
	app.do(t, http.MethodPut, "/view", `{"view":"home"}`)
	app.do(t, http.MethodPut, "/view", `{"view":"chat"}`)

	st := decode[chatResponse](t, app.do(t, http.MethodGet, "/chat/messages", ""))
	if st.SessionID != "session-2" || len(st.Messages) != 1 {
		t.Errorf("state = %+v, want a fresh session with only the greeting", st)
	}
}

func TestChat_LeavingViewEndsBackendSession(t *testing.T) {
	app := newTestApp(t, "")
	app.do(t, http.MethodPut, "/view", `{"view":"chat"}`)
	app.do(t, http.MethodPost, "/chat/messages", `{"text":"hello"}`)
	app.do(t, http.MethodPut, "/view", `{"view":"profile"}`)

	app.guide.mu.Lock()
	ended := append([]chat.SessionID(nil), app.guide.ended...)
	app.guide.mu.Unlock()
	if len(ended) != 1 || ended[0] != "session-1" {
		t.Errorf("ended sessions = %v, want [session-1]", ended)
	}
}

func TestChat_PendingReplyConflict(t *testing.T) {
	app := newTestApp(t, "")
	app.do(t, http.MethodPut, "/view", `{"view":"chat"}`)

	gate := make(chan struct{})
	app.guide.mu.Lock()
	app.guide.gate = gate
	app.guide.replying = make(chan struct{}, 1)
	replying := app.guide.replying
	app.guide.mu.Unlock()

	done := make(chan int, 1)
	go func() {
		done <- app.do(t, http.MethodPost, "/chat/messages", `{"text":"first"}`).Code
	}()
	<-replying

	if rr := app.do(t, http.MethodPost, "/chat/messages", `{"text":"second"}`); rr.Code != http.StatusConflict {
		t.Errorf("second send status = %d, want %d", rr.Code, http.StatusConflict)
	}
	close(gate)
	if code := <-done; code != http.StatusOK {
		t.Errorf("first send status = %d, want %d", code, http.StatusOK)
	}
}

func TestGuide_Flow(t *testing.T) {
	app := newTestApp(t, "")

	if rr := app.do(t, http.MethodGet, "/guide", ""); rr.Code != http.StatusConflict {
		t.Fatalf("status outside guide = %d, want %d", rr.Code, http.StatusConflict)
	}

	app.do(t, http.MethodPut, "/view", `{"view":"travel_guide"}`)
	snap := decode[recommend.Snapshot](t, app.do(t, http.MethodGet, "/guide", ""))
	if snap.Status != recommend.StatusIdle || snap.Province != "" {
		t.Errorf("snapshot = %+v, want idle with no province", snap)
	}

	rr := app.do(t, http.MethodPost, "/guide/province", `{"province":"Bangkok"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	snap = decode[recommend.Snapshot](t, rr)
	if snap.Status != recommend.StatusReady || len(snap.Items) != 3 {
		t.Fatalf("snapshot = %+v, want three attractions", snap)
	}
	wantCats := []string{"all", "Temple", "Market"}
	if strings.Join(snap.Categories, ",") != strings.Join(wantCats, ",") {
		t.Errorf("categories = %v, want %v", snap.Categories, wantCats)
	}

	snap = decode[recommend.Snapshot](t, app.do(t, http.MethodPut, "/guide/filter", `{"category":"Temple"}`))
	if len(snap.Items) != 2 || snap.Filter != "Temple" {
		t.Errorf("filtered snapshot = %+v, want two temples", snap)
	}

	snap = decode[recommend.Snapshot](t, app.do(t, http.MethodPut, "/guide/tab", `{"tab":"restaurants"}`))
	if snap.Tab != recommend.TabRestaurants || snap.Filter != recommend.AllCategories || len(snap.Items) != 1 {
		t.Errorf("restaurant snapshot = %+v", snap)
	}

	if rr := app.do(t, http.MethodPut, "/guide/tab", `{"tab":"hotels"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad tab status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	snap = decode[recommend.Snapshot](t, app.do(t, http.MethodDelete, "/guide/province", ""))
	if snap.Status != recommend.StatusIdle || snap.Province != "" || len(snap.Items) != 0 {
		t.Errorf("cleared snapshot = %+v, want idle with no province", snap)
	}
}

func TestGuide_MemoSurvivesRemount(t *testing.T) {
	app := newTestApp(t, "")
	app.do(t, http.MethodPut, "/view", `{"view":"travel_guide"}`)
	app.do(t, http.MethodPost, "/guide/province", `{"province":"Bangkok"}`)
	app.do(t, http.MethodPut, "/view", `{"view":"home"}`)
	app.do(t, http.MethodPut, "/view", `{"view":"travel_guide"}`)

	snap := decode[recommend.Snapshot](t, app.do(t, http.MethodPost, "/guide/province", `{"province":"Bangkok"}`))
	if snap.Status != recommend.StatusReady {
		t.Errorf("status = %q, want ready", snap.Status)
	}
	if n := app.guide.calls(); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
}

func TestGuide_FailedProvince(t *testing.T) {
	app := newTestApp(t, "")
	app.do(t, http.MethodPut, "/view", `{"view":"travel_guide"}`)

	snap := decode[recommend.Snapshot](t, app.do(t, http.MethodPost, "/guide/province", `{"province":"Atlantis"}`))
	if snap.Status != recommend.StatusFailed || len(snap.Items) != 0 {
		t.Errorf("snapshot = %+v, want failed with no items", snap)
	}
}

func TestModal(t *testing.T) {
	app := newTestApp(t, "")

	if rr := app.do(t, http.MethodPost, "/modal", `{"kind":"place_detail"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if rr := app.do(t, http.MethodPost, "/modal", `{"kind":"spa"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	st := decode[nav.State](t, app.do(t, http.MethodPost, "/modal", `{"kind":"place_detail","item":{"name":"Wat Pho","category":"Temple"}}`))
	if st.Modal.Kind != nav.ModalPlaceDetail || st.Modal.Province != nav.DefaultProvince {
		t.Fatalf("modal = %+v, want place detail in Thailand", st.Modal)
	}
	if st.Map == nil || st.Map.Query != "Wat Pho Thailand" {
		t.Fatalf("map = %+v, want query for Wat Pho", st.Map)
	}
	if !strings.HasPrefix(st.Map.EmbedURL, "https://maps.google.com/maps?q=Wat%20Pho%20Thailand&") {
		t.Errorf("embed url = %q", st.Map.EmbedURL)
	}

	st = decode[nav.State](t, app.do(t, http.MethodPost, "/modal", `{"kind":"transport"}`))
	if st.Modal.Kind != nav.ModalTransport || st.Modal.Item != nil || st.Map != nil {
		t.Errorf("modal = %+v, want transport replacing place detail", st.Modal)
	}

	st = decode[nav.State](t, app.do(t, http.MethodDelete, "/modal", ""))
	if st.Modal.Kind != nav.ModalNone {
		t.Errorf("modal = %+v, want none", st.Modal)
	}
}

func TestOverlay(t *testing.T) {
	app := newTestApp(t, "")
	app.do(t, http.MethodPut, "/view", `{"view":"profile"}`)

	st := decode[nav.State](t, app.do(t, http.MethodPost, "/overlay/ar", ""))
	if !st.OverlayAR || st.View != nav.ViewProfile {
		t.Fatalf("state = %+v, want overlay above profile", st)
	}
	if st.Tracking == nil || *st.Tracking != arbridge.StateSearching {
		t.Fatalf("tracking = %v, want searching", st.Tracking)
	}
	if n := app.hub.Subscriptions(); n != 1 {
		t.Errorf("subscriptions = %d, want 1", n)
	}

	st = decode[nav.State](t, app.do(t, http.MethodDelete, "/overlay/ar", ""))
	if st.OverlayAR || st.Tracking != nil {
		t.Errorf("state = %+v, want overlay closed", st)
	}
	if n := app.hub.Subscriptions(); n != 0 {
		t.Errorf("subscriptions = %d, want 0", n)
	}
}

func TestAREvents_LockAwardsStamp(t *testing.T) {
	app := newTestApp(t, "")
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	app.do(t, http.MethodPost, "/overlay/ar", "")

	ws, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ar/events", "", "http://localhost/")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := websocket.JSON.Send(ws, tracker.Event{Event: tracker.EventTargetFound, Target: testMarker}); err != nil {
		t.Fatalf("send: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		st := decode[nav.State](t, app.do(t, http.MethodGet, "/state", ""))
		if st.Tracking != nil && *st.Tracking == arbridge.StateLocked {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("tracking never locked: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}

	p := decode[loyalty.Profile](t, app.do(t, http.MethodGet, "/profile", ""))
	if p.Member.Points != 400 {
		t.Errorf("points = %d, want 400 after the marker stamp", p.Member.Points)
	}
	for _, st := range p.Stamps {
		if st.ID == "golden-mount" && !st.Collected {
			t.Error("golden-mount stamp not collected")
		}
	}
}

func TestAREvents_RequiresToken(t *testing.T) {
	app := newTestApp(t, "secret")
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ar/events"
	if ws, err := websocket.Dial(base, "", "http://localhost/"); err == nil {
		ws.Close()
		t.Fatal("dial without a token succeeded")
	}
	if ws, err := websocket.Dial(base+"?token=wrong", "", "http://localhost/"); err == nil {
		ws.Close()
		t.Fatal("dial with a wrong token succeeded")
	}

	ws, err := websocket.Dial(base+"?token=secret", "", "http://localhost/")
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	ws.Close()

	// The query token is only for the socket.
	if rr := app.do(t, http.MethodGet, "/state?token=secret", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("state with query token = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestProfile_Redeem(t *testing.T) {
	app := newTestApp(t, "")

	p := decode[loyalty.Profile](t, app.do(t, http.MethodGet, "/profile", ""))
	if p.Member.Points != 350 {
		t.Fatalf("points = %d, want 350", p.Member.Points)
	}

	rr := app.do(t, http.MethodPost, "/profile/redeem", `{"rewardId":"thai-tea"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusCreated)
	}
	red := decode[loyalty.Redemption](t, rr)
	if red.RewardID != "thai-tea" || red.Cost != 100 || red.ID == "" {
		t.Errorf("redemption = %+v", red)
	}

	rr = app.do(t, http.MethodPost, "/profile/redeem", `{"rewardId":"elephant-ride"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown reward status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = app.do(t, http.MethodPost, "/profile/redeem", `{"rewardId":"otop-discount"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("insufficient status = %d, want %d", rr.Code, http.StatusConflict)
	}
	if typ := errorType(t, rr); typ != "insufficient_points" {
		t.Errorf("error type = %q, want insufficient_points", typ)
	}

	rr = app.do(t, http.MethodPost, "/profile/redeem", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing id status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	p = decode[loyalty.Profile](t, app.do(t, http.MethodGet, "/profile", ""))
	if p.Member.Points != 250 || len(p.Redemptions) != 1 {
		t.Errorf("profile = %+v, want 250 points and one redemption", p.Member)
	}
}
