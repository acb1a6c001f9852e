package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig_SetsApplicationName(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/whaleflow?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, ApplicationName, cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfig_KeepsDSNApplicationName(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/whaleflow?sslmode=disable&application_name=report")
	require.NoError(t, err)
	assert.Equal(t, "report", cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfig_BadDSN(t *testing.T) {
	_, err := poolConfig("postgres://u:p@localhost:notaport/db")
	assert.Error(t, err)
}

func TestErrorClassification(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgErrUniqueViolation})
	assert.True(t, isDuplicateKeyError(dup))
	assert.False(t, isDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isDuplicateKeyError(errors.New("boom")))
	assert.False(t, isDuplicateKeyError(nil))

	assert.True(t, isNotFoundError(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, isNotFoundError(errors.New("boom")))
}
