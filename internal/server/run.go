package server

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"
)

// Run starts every endpoint enabled in the configuration and returns when
// all of them have stopped. Standard input reaching EOF ends the whole run.
func Run(ctx context.Context, svc *Service, in io.Reader, out io.Writer) error {
	cfg := svc.cfg.Server
	if !cfg.Stdio && cfg.Listen == "" && cfg.HTTPListen == "" {
		return errors.New("nothing to serve: enable stdio or configure a listen address")
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Stdio {
		g.Go(func() error {
			defer cancel()
			return RunStdio(ctx, svc, in, out)
		})
	}
	if cfg.Listen != "" {
		g.Go(func() error {
			return RunTCP(ctx, svc, cfg.Listen)
		})
	}
	if cfg.HTTPListen != "" {
		g.Go(func() error {
			return RunHTTP(ctx, svc, cfg.HTTPListen)
		})
	}
	return g.Wait()
}
