package cmd

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	assert.Equal(t, "postgres", parseProvider("postgres://localhost:5432/callflow"))
	assert.Equal(t, "sqlite", parseProvider("sqlite://./callflow.db"))
	assert.Equal(t, "file", parseProvider("./data"))
	assert.Equal(t, "file", parseProvider("file://./data"))
}

func TestNewPersistence_FileBackend(t *testing.T) {
	store, err := NewPersistence(t.Context(), slog.Default(), t.TempDir())
	require.NoError(t, err)

	defer func() { _ = store.Close(t.Context()) }()

	assert.NoError(t, store.HealthCheck(t.Context()))
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("", slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	bus, err = NewEventBus("gochannel", slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("rabbitmq", slog.Default())
	assert.Error(t, err)
}
