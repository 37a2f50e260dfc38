package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/samiralibabic/stepd/internal/transport/wsjsonrpc"
)

// Handler routes the WebSocket endpoint and the metrics endpoint.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Server.WSPath, wsjsonrpc.Handler(s.Serve, s.cfg.Limits.MaxMessageBytes, s.log.WithName("ws")))
	if s.cfg.Server.MetricsPath != "" {
		mux.Handle(s.cfg.Server.MetricsPath, s.metrics.Handler())
	}
	return mux
}

func RunHTTP(ctx context.Context, svc *Service, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	svc.log.WithName("http").Info("Listening", "addr", ln.Addr().String(), "ws_path", svc.cfg.Server.WSPath)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
