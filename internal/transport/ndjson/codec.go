package ndjson

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/samiralibabic/stepd/internal/transport"
)

type Decoder struct {
	reader   *bufio.Reader
	maxBytes int
}

func NewDecoder(r io.Reader, maxBytes int) *Decoder {
	return &Decoder{reader: bufio.NewReader(r), maxBytes: maxBytes}
}

// ReadMessage returns the next non-blank line without its terminator. A final
// line that is not newline-terminated is still returned.
func (d *Decoder) ReadMessage() ([]byte, error) {
	for {
		line, err := d.readLine()
		if msg := bytes.TrimSpace(line); len(msg) > 0 {
			return msg, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *Decoder) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := d.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if d.maxBytes > 0 && len(line) > d.maxBytes+2 {
			return nil, fmt.Errorf("%w: message exceeds %d bytes", transport.ErrMalformedFrame, d.maxBytes)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

type Encoder struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{writer: w}
}

func (e *Encoder) WriteMessage(payload []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, '\n')
	_, err := e.writer.Write(buf)
	return err
}

// Framer reads and writes newline-delimited messages.
type Framer struct {
	*Decoder
	*Encoder
}

func NewFramer(r io.Reader, w io.Writer, maxBytes int) *Framer {
	return &Framer{Decoder: NewDecoder(r, maxBytes), Encoder: NewEncoder(w)}
}

var _ transport.Framer = (*Framer)(nil)
