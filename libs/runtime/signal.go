package runtime

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// ShutdownStep is one named stage of a graceful stop.
type ShutdownStep struct {
	Name string
	Stop func(context.Context) error
}

// Shutdown runs steps in order under one shared deadline. A failing step is
// logged and the remaining steps still run.
func Shutdown(logger *slog.Logger, timeout time.Duration, steps ...ShutdownStep) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for _, s := range steps {
		if s.Stop == nil {
			continue
		}
		if err := s.Stop(ctx); err != nil {
			logger.Error("shutdown step failed", "step", s.Name, "err", err)
			continue
		}
		logger.Debug("shutdown step done", "step", s.Name)
	}
}
