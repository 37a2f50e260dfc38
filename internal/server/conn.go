package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/samiralibabic/stepd/internal/audit"
	"github.com/samiralibabic/stepd/internal/command"
	"github.com/samiralibabic/stepd/internal/metrics"
	"github.com/samiralibabic/stepd/internal/protocol"
	"github.com/samiralibabic/stepd/internal/session"
	"github.com/samiralibabic/stepd/internal/transport"
)

// ErrRateLimited answers requests arriving faster than the connection's
// configured pace.
var ErrRateLimited = &protocol.ErrorObject{Code: protocol.CodeRateLimited, Message: "rate limit exceeded"}

// conn is the state of one served connection.
type conn struct {
	svc     *Service
	log     logr.Logger
	remote  string
	sess    *session.Session
	limiter *rate.Limiter
}

// Serve runs the request loop for one connection. It returns nil when the
// client disconnects or closes the stream, and an error when the stream
// breaks or violates the framing.
func (s *Service) Serve(ctx context.Context, f transport.Framer, remote string) error {
	log := s.log.WithValues("remote", remote)
	c := &conn{
		svc:    s,
		log:    log,
		remote: remote,
		sess: session.New(s.newCap(log),
			session.WithLogger(log.WithName("session")),
			session.WithLocator(s.locator),
			session.WithStepBudget(s.cfg.Limits.StepBudget),
		),
	}
	if rps := s.cfg.Limits.RequestsPerSecond; rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, s.cfg.Limits.Burst))
	}
	defer c.sess.Close()

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()
	log.Info("Connection opened")

	for {
		if ctx.Err() != nil {
			log.Info("Connection closed by server")
			return nil
		}
		body, err := f.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("Connection closed by client")
				return nil
			}
			if errors.Is(err, transport.ErrMalformedFrame) {
				log.Error(err, "Dropping connection after framing error")
			}
			return fmt.Errorf("read message: %w", err)
		}

		resp, reply := c.handle(ctx, body)
		if reply {
			raw, err := protocol.Encode(resp)
			if err != nil {
				return fmt.Errorf("encode response: %w", err)
			}
			if err := f.WriteMessage(raw); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
		if c.sess.State() == session.Disconnected {
			log.Info("Session disconnected")
			return nil
		}
	}
}

// handle runs one message through parse, translate and dispatch. The
// boolean is false for notifications, which are not answered.
func (c *conn) handle(ctx context.Context, body []byte) (protocol.Response, bool) {
	start := time.Now()
	req, err := protocol.Parse(body)
	if err != nil {
		resp := protocol.Failure(nil, err)
		c.record(req, metrics.MethodInvalid, resp, start)
		return resp, true
	}

	var resp protocol.Response
	switch {
	case c.limiter != nil && !c.limiter.Allow():
		resp = protocol.Failure(req.ID, ErrRateLimited)
	default:
		resp = c.dispatch(ctx, req)
	}
	c.record(req, req.Method, resp, start)
	return resp, !req.IsNotification()
}

func (c *conn) dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	cmd, err := command.Translate(req)
	if err != nil {
		return protocol.Failure(req.ID, err)
	}
	result, err := session.Dispatch(ctx, c.sess, cmd)
	if err != nil {
		return protocol.Failure(req.ID, err)
	}
	return protocol.Success(req.ID, result)
}

// record reports a request to metrics, audit and the log. metricMethod is
// the method as labelled in metrics.
func (c *conn) record(req protocol.Request, metricMethod string, resp protocol.Response, start time.Time) {
	elapsed := time.Since(start)
	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
	}
	c.svc.metrics.ObserveRequest(metricMethod, code, elapsed)
	c.svc.audit.Record(audit.Entry{
		Remote:    c.remote,
		Method:    req.Method,
		ID:        idString(req.ID),
		Code:      code,
		State:     c.sess.State().String(),
		ElapsedMS: float64(elapsed) / float64(time.Millisecond),
	})
	if code != 0 {
		c.log.V(1).Info("Request failed", "method", req.Method, "id", idString(req.ID), "code", code, "message", resp.Error.Message)
		return
	}
	c.log.V(1).Info("Request handled", "method", req.Method, "id", idString(req.ID), "elapsed", elapsed)
}

func idString(id *protocol.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
