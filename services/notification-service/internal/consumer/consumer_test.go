package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/md-rashed-zaman/clinicflow/services/notification-service/internal/inbox"
)

// sliceReader yields queued messages, then blocks until the context ends.
type sliceReader struct {
	msgs   []kafka.Message
	closed bool
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

func msg(id string) kafka.Message {
	return kafka.Message{
		Topic:   "clinic.appointment.created.v1",
		Key:     []byte("appt-1"),
		Headers: []kafka.Header{{Key: "event_id", Value: []byte(id)}},
	}
}

func TestConsumerSkipsDuplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "clinic.appointment.created.v1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "clinic.appointment.created.v1").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-2", "clinic.appointment.created.v1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	reader := &sliceReader{msgs: []kafka.Message{msg("evt-1"), msg("evt-1"), msg("evt-2")}}
	ctx, cancel := context.WithCancel(context.Background())
	var handled []string
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), inbox.NewRepository(mock), reader,
		func(_ context.Context, m kafka.Message) error {
			handled = append(handled, string(m.Headers[0].Value))
			if len(handled) == 2 {
				cancel()
			}
			return nil
		})

	c.Run(ctx)
	assert.Equal(t, []string{"evt-1", "evt-2"}, handled)
	assert.True(t, reader.closed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumerContinuesAfterErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO inbox_events").WillReturnError(errors.New("db down"))
	mock.ExpectExec("INSERT INTO inbox_events").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO inbox_events").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	reader := &sliceReader{msgs: []kafka.Message{msg("evt-1"), msg("evt-2"), msg("evt-3")}}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	c := NewWithReader(slog.New(slog.NewTextHandler(io.Discard, nil)), inbox.NewRepository(mock), reader,
		func(context.Context, kafka.Message) error {
			calls++
			if calls == 2 {
				cancel()
			}
			return errors.New("handler failed")
		})

	c.Run(ctx)
	assert.Equal(t, 2, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}
