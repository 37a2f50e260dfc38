// Package transport defines how one protocol message is delimited on a byte
// stream. Concrete framings live in the ndjson, header and wsjsonrpc
// subpackages; a deployment picks exactly one of them.
package transport

import (
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned by ReadMessage when the stream violates the
// framing: a bad header, a body shorter than announced, or an oversized
// message. The connection cannot be resynchronized after it.
var ErrMalformedFrame = errors.New("malformed frame")

// Framer reads and writes whole messages.
//
// ReadMessage returns io.EOF on a clean end of stream, that is when the
// stream ends before the first byte of a message.
type Framer interface {
	ReadMessage() ([]byte, error)
	WriteMessage(msg []byte) error
}

type Style string

const (
	StyleNDJSON Style = "ndjson"
	StyleHeader Style = "header"
)

func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleNDJSON, "":
		return StyleNDJSON, nil
	case StyleHeader:
		return StyleHeader, nil
	default:
		return "", fmt.Errorf("unknown framing %q, want ndjson or header", s)
	}
}
