package storage

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestInsertDefaultsPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("evt-1", "appt-1", "reminder", "email", "ana@example.com", "smtp", StatusSent, "", []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewRepository(mock).Insert(context.Background(), Notification{
		EventID: "evt-1", AppointmentID: "appt-1", Kind: "reminder", Channel: "email",
		Recipient: "ana@example.com", Provider: "smtp", Status: StatusSent,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
