package server

import (
	"fmt"
	"io"

	"github.com/samiralibabic/stepd/internal/transport"
	"github.com/samiralibabic/stepd/internal/transport/header"
	"github.com/samiralibabic/stepd/internal/transport/ndjson"
)

// NewFramer builds the stream framer for style.
func NewFramer(style transport.Style, r io.Reader, w io.Writer, maxBytes int) (transport.Framer, error) {
	switch style {
	case transport.StyleNDJSON, "":
		return ndjson.NewFramer(r, w, maxBytes), nil
	case transport.StyleHeader:
		return header.NewFramer(r, w, maxBytes), nil
	default:
		return nil, fmt.Errorf("unknown framing %q", style)
	}
}

func (s *Service) streamFramer(r io.Reader, w io.Writer) (transport.Framer, error) {
	style, err := transport.ParseStyle(s.cfg.Server.Framing)
	if err != nil {
		return nil, err
	}
	return NewFramer(style, r, w, s.cfg.Limits.MaxMessageBytes)
}
