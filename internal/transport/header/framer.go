// Package header implements Content-Length framed messages, the framing used
// by the Debug Adapter Protocol and LSP:
//
//	Content-Length: <byte-count>\r\n
//	\r\n
//	<body>
package header

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-dap"

	"github.com/samiralibabic/stepd/internal/transport"
)

// DefaultMaxContentLength bounds a body when the caller passes no limit.
const DefaultMaxContentLength = 10 * 1024 * 1024

// MaxHeaderBytes bounds the header block of a single message.
const MaxHeaderBytes = 8 * 1024

type Framer struct {
	reader   *bufio.Reader
	writer   *bufio.Writer
	maxBytes int

	writeMu sync.Mutex
}

func NewFramer(r io.Reader, w io.Writer, maxBytes int) *Framer {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContentLength
	}
	return &Framer{
		reader:   bufio.NewReader(r),
		writer:   bufio.NewWriter(w),
		maxBytes: maxBytes,
	}
}

var _ transport.Framer = (*Framer)(nil)

func (f *Framer) ReadMessage() ([]byte, error) {
	length, err := f.readHeaders()
	if err != nil {
		return nil, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(f.reader, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: body shorter than Content-Length %d", transport.ErrMalformedFrame, length)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// readHeaders consumes the header block and returns the announced body length.
// It returns io.EOF only if the stream ends before any header byte.
func (f *Framer) readHeaders() (int, error) {
	length := -1
	seen := false
	budget := MaxHeaderBytes
	for {
		line, err := f.readLine(&budget)
		if err != nil {
			if errors.Is(err, transport.ErrMalformedFrame) {
				return 0, err
			}
			if errors.Is(err, io.EOF) {
				if !seen && strings.TrimSpace(line) == "" {
					return 0, io.EOF
				}
				return 0, fmt.Errorf("%w: stream ended inside header", transport.ErrMalformedFrame)
			}
			return 0, fmt.Errorf("read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if !seen {
				// stray separator between messages
				budget = MaxHeaderBytes
				continue
			}
			break
		}
		seen = true

		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return 0, fmt.Errorf("%w: invalid header %q", transport.ErrMalformedFrame, line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, convErr := strconv.Atoi(strings.TrimSpace(value))
			if convErr != nil || n < 0 {
				return 0, fmt.Errorf("%w: invalid Content-Length %q", transport.ErrMalformedFrame, value)
			}
			if n > f.maxBytes {
				return 0, fmt.Errorf("%w: Content-Length %d exceeds maximum %d", transport.ErrMalformedFrame, n, f.maxBytes)
			}
			length = n
		}
	}
	if length < 0 {
		return 0, fmt.Errorf("%w: missing Content-Length header", transport.ErrMalformedFrame)
	}
	return length, nil
}

// readLine reads one header line, charging it against budget. It fails
// without buffering further once the budget is spent.
func (f *Framer) readLine(budget *int) (string, error) {
	var line []byte
	for {
		chunk, err := f.reader.ReadSlice('\n')
		if len(line)+len(chunk) > *budget {
			return "", fmt.Errorf("%w: header exceeds %d bytes", transport.ErrMalformedFrame, MaxHeaderBytes)
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		*budget -= len(line)
		return string(line), err
	}
}

func (f *Framer) WriteMessage(msg []byte) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if err := dap.WriteBaseMessage(f.writer, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := f.writer.Flush(); err != nil {
		return fmt.Errorf("flush message: %w", err)
	}
	return nil
}
