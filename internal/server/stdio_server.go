package server

import (
	"context"
	"io"
)

// RunStdio serves a single connection over in and out.
func RunStdio(ctx context.Context, svc *Service, in io.Reader, out io.Writer) error {
	f, err := svc.streamFramer(in, out)
	if err != nil {
		return err
	}
	return svc.Serve(ctx, f, "stdio")
}
