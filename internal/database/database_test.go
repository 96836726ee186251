package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sultanlodh/Stream/internal/config"
)

func TestNormalizeDSN(t *testing.T) {
	dsn, err := NormalizeDSN("root:debezium@tcp(127.0.0.1:3306)/inventory")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "/inventory")

	_, err = NormalizeDSN("")
	assert.Error(t, err)

	_, err = NormalizeDSN("not a dsn")
	assert.Error(t, err)
}

func TestOpenSharesPoolWhenReaderMatchesWriter(t *testing.T) {
	dsn := "root:debezium@tcp(127.0.0.1:3306)/inventory"
	conns, err := Open(config.Database{Driver: "mysql", WriterDSN: dsn, ReaderDSN: dsn})
	require.NoError(t, err)
	defer conns.Close()

	assert.Same(t, conns.Writer, conns.Reader)
}

func TestOpenRejectsOtherDrivers(t *testing.T) {
	_, err := Open(config.Database{Driver: "postgres", WriterDSN: "postgres://localhost"})
	assert.Error(t, err)
}
