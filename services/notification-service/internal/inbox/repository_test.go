package inbox

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestRecordClaimsEventOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "appointment.created").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-1", "appointment.created").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	repo := NewRepository(mock)
	first, err := repo.Record(context.Background(), "evt-1", "appointment.created")
	require.NoError(t, err)
	require.True(t, first)

	again, err := repo.Record(context.Background(), "evt-1", "appointment.created")
	require.NoError(t, err)
	require.False(t, again)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPassesOtherErrorsThrough(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO inbox_events").
		WithArgs("evt-2", "appointment.cancelled").
		WillReturnError(boom)

	ok, err := NewRepository(mock).Record(context.Background(), "evt-2", "appointment.cancelled")
	require.ErrorIs(t, err, boom)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
