package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "xml")
}

func TestNewHonoursLevel(t *testing.T) {
	ctx := context.Background()

	logger, err := New(Options{Level: "warn"})
	require.NoError(t, err)
	require.False(t, logger.Enabled(ctx, slog.LevelInfo))
	require.True(t, logger.Enabled(ctx, slog.LevelWarn))

	// Unknown and empty levels both settle on info.
	for _, level := range []string{"", "loud"} {
		logger, err := New(Options{Level: level, Format: "json"})
		require.NoError(t, err)
		require.False(t, logger.Enabled(ctx, slog.LevelDebug))
		require.True(t, logger.Enabled(ctx, slog.LevelInfo))
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	require.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
