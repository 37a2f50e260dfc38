package integration

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/samiralibabic/stepd/internal/config"
	"github.com/samiralibabic/stepd/internal/server"
)

const loopProgram = `local total = 0
for i = 1, 3 do
  total = total + i
end
print(total)
`

func startStdio(t *testing.T, cfg config.Config) (*client, <-chan error) {
	t.Helper()
	svc, err := server.NewService(cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cl, srv := net.Pipe()
	t.Cleanup(func() { _ = cl.Close() })
	done := make(chan error, 1)
	go func() {
		done <- server.RunStdio(context.Background(), svc, srv, srv)
		_ = srv.Close()
	}()
	return newClient(t, cl), done
}

func TestStdioSteppingSession(t *testing.T) {
	tmp := t.TempDir()
	prog := writeProgram(t, tmp, "loop.lua", loopProgram)
	cfg := config.Default()
	cfg.Security.AllowedRoot = []config.AllowedRoot{{Path: tmp}}
	c, done := startStdio(t, cfg)

	if resp := c.call(1, "next", nil); resp.Error == nil || resp.Error.Code != 409 {
		t.Fatalf("next before initialize: got %+v", resp)
	}

	started := c.ok(2, "initialize", map[string]any{"path": prog})
	if started["status"] != "initialized" || started["version"] != "0.1.0" {
		t.Fatalf("unexpected initialize result: %+v", started)
	}

	step := c.ok(3, "next", nil)
	if step["status"] != "step" || step["instructionPointer"] != "0x1" {
		t.Fatalf("unexpected next result: %+v", step)
	}
	source := step["source"].(map[string]any)
	if source["line"] != float64(2) || source["file"] != prog {
		t.Fatalf("unexpected source: %+v", source)
	}

	cont := c.ok("cont", "continue", map[string]any{"until": "0x3"})
	if cont["status"] != "running" || cont["instructionPointer"] != "0x3" {
		t.Fatalf("unexpected continue result: %+v", cont)
	}

	paused := c.ok(5, "pause", nil)
	if paused["status"] != "paused" || paused["instructionPointer"] != "0x3" {
		t.Fatalf("unexpected pause result: %+v", paused)
	}

	fin := c.ok(6, "next", nil)
	if fin["status"] != "finished" {
		t.Fatalf("unexpected final result: %+v", fin)
	}

	if resp := c.call(7, "stepIn", nil); resp.Error == nil || resp.Error.Code != 404 || string(resp.ID) != "7" {
		t.Fatalf("stepIn: got %+v", resp)
	}

	bye := c.ok(8, "disconnect", nil)
	if bye["disconnected"] != true {
		t.Fatalf("unexpected disconnect result: %+v", bye)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve loop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve loop did not exit after disconnect")
	}
}

func TestStdioTrapAndReinitialize(t *testing.T) {
	tmp := t.TempDir()
	bad := writeProgram(t, tmp, "bad.lua", "local x = 1\nerror(\"boom\")\n")
	good := writeProgram(t, tmp, "good.lua", "local y = 2\n")
	cfg := config.Default()
	cfg.Security.AllowedRoot = []config.AllowedRoot{{Path: tmp}}
	c, _ := startStdio(t, cfg)

	c.ok(1, "initialize", map[string]any{"path": bad})
	trap := c.ok(2, "continue", map[string]any{"until": "0xff"})
	if trap["status"] != "trapped" || !strings.Contains(trap["message"].(string), "boom") {
		t.Fatalf("unexpected trap result: %+v", trap)
	}

	c.ok(3, "initialize", map[string]any{"path": good})
	step := c.ok(4, "next", nil)
	if step["status"] != "finished" {
		t.Fatalf("unexpected result after reinitialize: %+v", step)
	}
}

func TestStdioRejectsProgramsOutsideAllowedRoots(t *testing.T) {
	allowed := t.TempDir()
	prog := writeProgram(t, t.TempDir(), "elsewhere.lua", "local x = 1\n")
	cfg := config.Default()
	cfg.Security.AllowedRoot = []config.AllowedRoot{{Path: allowed}}
	c, _ := startStdio(t, cfg)

	resp := c.call(1, "initialize", map[string]any{"path": prog})
	if resp.Error == nil || resp.Error.Code != 500 || !strings.Contains(resp.Error.Message, "outside allowed roots") {
		t.Fatalf("expected forbidden path error, got %+v", resp)
	}
	if resp := c.call(2, "next", nil); resp.Error == nil || resp.Error.Code != 409 {
		t.Fatalf("session should still be uninitialized, got %+v", resp)
	}
}

func TestStdioRunawayProgram(t *testing.T) {
	tmp := t.TempDir()
	prog := writeProgram(t, tmp, "spin.lua", "while true do end\n")
	cfg := config.Default()
	cfg.Limits.StepBudget = 1000
	c, _ := startStdio(t, cfg)

	c.ok(1, "initialize", map[string]any{"path": prog})
	res := c.ok(2, "continue", map[string]any{"until": "0xffff"})
	if res["status"] != "out-of-resource" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
