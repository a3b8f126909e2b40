package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/caterpillar-1/CShapeZ/internal/observerproto"
	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/encoding"
	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

func startWorld(t *testing.T) (*world.World, *httptest.Server) {
	t.Helper()
	w, err := world.New(world.WorldConfig{
		ID:               "obs",
		TickRateHz:       60,
		GridW:            16,
		GridH:            12,
		CenterSize:       4,
		Seed:             7,
		ResourcePermille: 500,
		BaseRates:        device.DefaultBaseRates(),
		Ratios:           device.DefaultRatios(),
	})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	mux := http.NewServeMux()
	NewServer(w, nil).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return w, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBootstrapDescribesGrid(t *testing.T) {
	_, srv := startWorld(t)
	resp, err := http.Get(srv.URL + "/v1/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.WorldID != "obs" || b.WorldParams.GridW != 16 || b.Ground.Encoding != observerproto.GroundEncoding {
		t.Fatalf("bootstrap=%+v", b)
	}
	ids, err := encoding.DecodeRLE(b.Ground.Data, 16*12)
	if err != nil || len(ids) != 16*12 {
		t.Fatalf("ground ids=%d err=%v", len(ids), err)
	}
	for _, id := range ids {
		if int(id) >= len(b.Palette) {
			t.Fatalf("ground id %d outside palette %v", id, b.Palette)
		}
	}
}

func TestRemoteClientsAreRejected(t *testing.T) {
	s := NewServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/bootstrap", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	s.BootstrapHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d", rec.Code)
	}
	if !isLoopbackRemote("[::1]:80") || isLoopbackRemote("example.com:80") {
		t.Fatalf("loopback detection")
	}
}

func TestWebsocketStreamsTicksAndAppliesCommands(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)

	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, Devices: true}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cmd := observerproto.CommandMsg{
		Type: observerproto.TypePlace, ProtocolVersion: observerproto.Version,
		ID: "c1", Device: "TRASH", Pos: [2]int{0, 0},
	}
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("place: %v", err)
	}
	bad := observerproto.CommandMsg{
		Type: observerproto.TypePlace, ProtocolVersion: observerproto.Version,
		ID: "c2", Device: "MINER", Pos: [2]int{99, 0},
	}
	if err := conn.WriteJSON(bad); err != nil {
		t.Fatalf("place: %v", err)
	}

	var sawTick bool
	results := map[string]observerproto.ResultMsg{}
	deadline := time.Now().Add(5 * time.Second)
	for (len(results) < 2 || !sawTick) && time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(msg, &head)
		switch head.Type {
		case observerproto.TypeTick:
			var tm observerproto.TickMsg
			if err := json.Unmarshal(msg, &tm); err != nil {
				t.Fatalf("tick: %v", err)
			}
			if len(tm.Devices) == 0 {
				t.Fatalf("devices requested but tick has none")
			}
			sawTick = true
		case observerproto.TypeResult:
			var r observerproto.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				t.Fatalf("result: %v", err)
			}
			results[r.ID] = r
		}
	}
	if !sawTick {
		t.Fatalf("no TICK received")
	}
	if r := results["c1"]; !r.OK {
		t.Fatalf("c1=%+v", r)
	}
	if r := results["c2"]; r.OK || r.Code != observerproto.ErrInvalidTarget {
		t.Fatalf("c2=%+v", r)
	}
}

func TestWebsocketRejectsVersionMismatch(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestCommandWithWrongVersionIsRejected(t *testing.T) {
	_, srv := startWorld(t)
	conn := dial(t, srv)
	if err := conn.WriteJSON(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := conn.WriteJSON(observerproto.CommandMsg{Type: observerproto.TypeRemove, ProtocolVersion: "0.1", ID: "old"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var r observerproto.ResultMsg
		if json.Unmarshal(msg, &r) == nil && r.Type == observerproto.TypeResult {
			if r.ID != "old" || r.Code != observerproto.ErrBadRequest {
				t.Fatalf("result=%+v", r)
			}
			return
		}
	}
	t.Fatalf("no RESULT received")
}
