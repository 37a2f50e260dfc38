package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
)

// RunTCP listens on addr and serves every accepted connection in its own
// goroutine until ctx is cancelled.
func RunTCP(ctx context.Context, svc *Service, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, svc, ln)
}

// ServeListener is RunTCP on an existing listener, which it closes before
// returning.
func ServeListener(ctx context.Context, svc *Service, ln net.Listener) error {
	log := svc.log.WithName("tcp").WithValues("addr", ln.Addr().String())
	log.Info("Listening")

	var sem *semaphore.Weighted
	if n := svc.cfg.Limits.MaxConnections; n > 0 {
		sem = semaphore.NewWeighted(n)
	}

	var (
		mu     sync.Mutex
		closed bool
		conns  = map[net.Conn]struct{}{}
		wg     sync.WaitGroup
	)
	shutdown := func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		closed = true
		for c := range conns {
			_ = c.Close()
		}
	}
	stop := context.AfterFunc(ctx, shutdown)
	defer func() {
		stop()
		shutdown()
		wg.Wait()
	}()

	for {
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
		}
		conn, err := accept(ctx, ln, svc)
		if err != nil {
			if sem != nil {
				sem.Release(1)
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		mu.Lock()
		if closed {
			mu.Unlock()
			_ = conn.Close()
			if sem != nil {
				sem.Release(1)
			}
			return nil
		}
		conns[conn] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(conns, conn)
				mu.Unlock()
				_ = conn.Close()
				if sem != nil {
					sem.Release(1)
				}
			}()
			remote := conn.RemoteAddr().String()
			f, err := svc.streamFramer(conn, conn)
			if err == nil {
				err = svc.Serve(ctx, f, remote)
			}
			if err != nil && ctx.Err() == nil {
				log.Error(err, "Connection ended with error", "remote", remote)
			}
		}()
	}
}

// accept retries transient accept failures with exponential back-off.
func accept(ctx context.Context, ln net.Listener, svc *Service) (net.Conn, error) {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(5*time.Millisecond),
		backoff.WithMaxInterval(time.Second),
		backoff.WithMaxElapsedTime(time.Minute),
	)
	return backoff.RetryNotifyWithData(
		func() (net.Conn, error) {
			conn, err := ln.Accept()
			if err != nil && (ctx.Err() != nil || errors.Is(err, net.ErrClosed)) {
				return nil, backoff.Permanent(err)
			}
			return conn, err
		},
		backoff.WithContext(b, ctx),
		func(err error, d time.Duration) {
			svc.log.V(1).Info("Accept failed, retrying", "error", err.Error(), "delay", d)
		},
	)
}
