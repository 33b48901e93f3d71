package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPgCodeUnwraps(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeUniqueViolation})
	assert.Equal(t, CodeUniqueViolation, PgCode(err))
	assert.Equal(t, "", PgCode(errors.New("plain")))
}
