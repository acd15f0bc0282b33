package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/interloq/interloq/internal/orchestrator"
)

// fakeEngine records dispatched commands and serves scripted snapshots.
type fakeEngine struct {
	mu         sync.Mutex
	dispatched []orchestrator.Command

	snap  orchestrator.Snapshot
	snaps chan orchestrator.Snapshot
}

func (e *fakeEngine) Dispatch(_ context.Context, cmd orchestrator.Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatched = append(e.dispatched, cmd)
	return nil
}

func (e *fakeEngine) Subscribe() (<-chan orchestrator.Snapshot, func()) {
	return e.snaps, func() {}
}

func (e *fakeEngine) Snapshot() orchestrator.Snapshot { return e.snap }

func (e *fakeEngine) commands() []orchestrator.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]orchestrator.Command, len(e.dispatched))
	copy(out, e.dispatched)
	return out
}

func newTestGateway(t *testing.T) (*fakeEngine, *httptest.Server) {
	t.Helper()
	engine := &fakeEngine{
		snap:  orchestrator.Snapshot{SessionState: "idle", OperationState: "idle", Status: "idle"},
		snaps: make(chan orchestrator.Snapshot, 4),
	}
	srv := httptest.NewServer(New(engine).Handler())
	t.Cleanup(srv.Close)
	return engine, srv
}

func TestGateway_State(t *testing.T) {
	engine, srv := newTestGateway(t)
	engine.snap.Status = "listening"

	resp, err := http.Get(srv.URL + "/state")
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var snap orchestrator.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Status != "listening" {
		t.Errorf("status = %q, want listening", snap.Status)
	}
}

func TestGateway_CommandDispatch(t *testing.T) {
	engine, srv := newTestGateway(t)

	body := bytes.NewBufferString(`{"command": "pause"}`)
	resp, err := http.Post(srv.URL+"/commands", "application/json", body)
	if err != nil {
		t.Fatalf("POST /commands: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	cmds := engine.commands()
	if len(cmds) != 1 || cmds[0] != orchestrator.CmdPause {
		t.Errorf("dispatched = %v, want [pause]", cmds)
	}
}

func TestGateway_CommandRejectsUnknown(t *testing.T) {
	engine, srv := newTestGateway(t)

	body := bytes.NewBufferString(`{"command": "self-destruct"}`)
	resp, err := http.Post(srv.URL+"/commands", "application/json", body)
	if err != nil {
		t.Fatalf("POST /commands: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(engine.commands()) != 0 {
		t.Errorf("dispatched = %v, want none", engine.commands())
	}
}

func TestGateway_Health(t *testing.T) {
	_, srv := newTestGateway(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGateway_WebsocketFeedAndCommands(t *testing.T) {
	engine, srv := newTestGateway(t)
	engine.snaps <- orchestrator.Snapshot{SessionState: "active", Status: "listening"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var snap orchestrator.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.SessionState != "active" {
		t.Errorf("session state = %q, want active", snap.SessionState)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"command": "stop"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		cmds := engine.commands()
		if len(cmds) == 1 && cmds[0] == orchestrator.CmdStop {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("command not dispatched; got %v", engine.commands())
}
