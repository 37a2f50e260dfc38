// Package audit keeps a JSON-lines trail of answered requests, separate from
// the operational log.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

type Entry struct {
	Time      time.Time `json:"time"`
	Remote    string    `json:"remote,omitempty"`
	Method    string    `json:"method"`
	ID        string    `json:"id,omitempty"`
	Code      int       `json:"code"`
	State     string    `json:"state"`
	ElapsedMS float64   `json:"elapsed_ms"`
}

// Trail appends entries to a file. A nil *Trail records nothing.
type Trail struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
	err error
	now func() time.Time
}

// Open appends to path, creating the file if needed.
func Open(path string) (*Trail, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &Trail{f: f, enc: json.NewEncoder(f), now: time.Now}, nil
}

// Record appends e. After the first write failure the trail stops recording
// and Err reports the failure; requests are never failed because of it.
func (t *Trail) Record(e Entry) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = t.now().UTC()
	}
	t.err = t.enc.Encode(e)
}

func (t *Trail) Err() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Trail) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		t.err = os.ErrClosed
	}
	return t.f.Close()
}
