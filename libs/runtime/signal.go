package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext cancels on SIGINT/SIGTERM. The HTTP server, the outbox
// publisher and the invalidation consumers all hang their shutdown off the
// returned context, so one signal drains the whole process.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
