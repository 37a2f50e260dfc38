package session

import (
	"context"

	"github.com/samiralibabic/stepd/internal/command"
)

// Dispatch applies cmd to s if the session's state allows it. Rejected
// commands leave the session untouched.
func Dispatch(ctx context.Context, s *Session, cmd command.Command) (any, error) {
	if u, ok := cmd.(command.Unknown); ok {
		return nil, &MethodNotFoundError{Method: u.Name}
	}

	switch s.state {
	case Disconnected:
		return nil, &StateError{State: s.state, Method: cmd.Method(), Err: ErrSessionClosed}
	case Uninitialized:
		switch c := cmd.(type) {
		case command.Initialize:
			return s.Initialize(ctx, c.Path)
		case command.Disconnect:
			return s.Disconnect(), nil
		default:
			return nil, &StateError{State: s.state, Method: cmd.Method(), Err: ErrNotInitialized}
		}
	}

	switch c := cmd.(type) {
	case command.Initialize:
		return s.Initialize(ctx, c.Path)
	case command.Pause:
		return s.Pause(ctx)
	case command.Continue:
		return s.Continue(ctx, c.Until)
	case command.Next:
		return s.Next(ctx)
	case command.Disconnect:
		return s.Disconnect(), nil
	default:
		return nil, &MethodNotFoundError{Method: cmd.Method()}
	}
}
