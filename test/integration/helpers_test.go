package integration

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  map[string]any  `json:"result"`
	Error   *rpcError       `json:"error"`
}

type client struct {
	t   *testing.T
	enc *json.Encoder
	dec *bufio.Reader
}

func newClient(t *testing.T, rw io.ReadWriter) *client {
	return &client{t: t, enc: json.NewEncoder(rw), dec: bufio.NewReader(rw)}
}

func (c *client) call(id any, method string, params any) rpcResponse {
	c.t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	if err := c.enc.Encode(req); err != nil {
		c.t.Fatalf("encode %s: %v", method, err)
	}
	var resp rpcResponse
	if err := readLine(c.dec, &resp); err != nil {
		c.t.Fatalf("read %s response: %v", method, err)
	}
	return resp
}

func (c *client) ok(id any, method string, params any) map[string]any {
	c.t.Helper()
	resp := c.call(id, method, params)
	if resp.Error != nil {
		c.t.Fatalf("%s: unexpected error %d %s", method, resp.Error.Code, resp.Error.Message)
	}
	return resp.Result
}

func readLine(reader *bufio.Reader, out any) error {
	raw, err := reader.ReadBytes('\n')
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func writeProgram(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write program: %v", err)
	}
	return path
}
