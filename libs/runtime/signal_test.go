package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownRunsEveryStepInOrder(t *testing.T) {
	var order []string
	step := func(name string, err error) ShutdownStep {
		return ShutdownStep{Name: name, Stop: func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			order = append(order, name)
			return err
		}}
	}

	Shutdown(slog.New(slog.NewTextHandler(io.Discard, nil)), time.Second,
		step("http", nil),
		step("drain", errors.New("timed out")),
		ShutdownStep{Name: "nil"},
		step("grpc", nil),
	)
	assert.Equal(t, []string{"http", "drain", "grpc"}, order)
}
