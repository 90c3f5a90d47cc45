package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("parses configured level", func(t *testing.T) {
		log := New(Config{Level: "warn", ServiceName: "test"})
		assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
	})

	t.Run("falls back to info on unknown level", func(t *testing.T) {
		log := New(Config{Level: "shouting", ServiceName: "test"})
		assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
	})

	t.Run("disabled level silences output", func(t *testing.T) {
		log := New(Config{Level: "disabled", ServiceName: "test"})
		assert.Equal(t, zerolog.Disabled, log.GetLevel())
	})
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	base := &Logger{Logger: zerolog.New(&buf)}

	child := base.With("routing")
	child.Info().Msg("resolved")

	require.NotZero(t, buf.Len())
	assert.Contains(t, buf.String(), `"component":"routing"`)
	assert.Contains(t, buf.String(), `"resolved"`)

	buf.Reset()
	base.Info().Msg("plain")
	assert.NotContains(t, buf.String(), "component")
}
