package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samiralibabic/stepd/internal/config"
	"github.com/samiralibabic/stepd/internal/server"
)

func TestTCPSession(t *testing.T) {
	tmp := t.TempDir()
	prog := writeProgram(t, tmp, "main.lua", loopProgram)
	svc, err := server.NewService(config.Default())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = server.ServeListener(ctx, svc, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	c := newClient(t, conn)

	c.ok(1, "initialize", map[string]any{"path": prog})
	res := c.ok(2, "continue", map[string]any{"until": "0x1000"})
	if res["status"] != "finished" {
		t.Fatalf("unexpected continue result: %+v", res)
	}
	c.ok(3, "disconnect", nil)

	// The server closes the connection after acknowledging the disconnect.
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err == nil {
		t.Fatal("expected connection to be closed")
	}
}

func TestWebSocketSession(t *testing.T) {
	tmp := t.TempDir()
	prog := writeProgram(t, tmp, "main.lua", loopProgram)
	svc, err := server.NewService(config.Default())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ts := httptest.NewServer(svc.Handler())
	defer ts.Close()

	wsURL := "ws" + ts.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	call := func(id int, method string, params any) rpcResponse {
		t.Helper()
		req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
		if params != nil {
			req["params"] = params
		}
		if err := conn.WriteJSON(req); err != nil {
			t.Fatalf("write ws req: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var resp rpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("read ws response: %v", err)
		}
		return resp
	}

	if resp := call(1, "initialize", map[string]any{"path": prog}); resp.Error != nil {
		t.Fatalf("unexpected ws error: %+v", resp.Error)
	}
	resp := call(2, "next", nil)
	if resp.Error != nil || resp.Result["instructionPointer"] != "0x1" {
		t.Fatalf("unexpected next response: %+v", resp)
	}
	var id int
	if err := json.Unmarshal(resp.ID, &id); err != nil || id != 2 {
		t.Fatalf("response id mismatch: %s", resp.ID)
	}
	if resp := call(3, "disconnect", nil); resp.Result["disconnected"] != true {
		t.Fatalf("unexpected disconnect response: %+v", resp)
	}
}
