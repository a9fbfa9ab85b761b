package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "debug", ServiceName: "tuuid", Output: &buf})
	logger.Debug().Str(FieldNode, "11:11:11:11:11:11").Msg("resolved")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tuuid", entry[FieldService])
	assert.Equal(t, "11:11:11:11:11:11", entry[FieldNode])
	assert.Equal(t, "debug", entry["level"])
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Output: &buf})
	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
}

func TestCtxCarriesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf}).With().Str(FieldComponent, "registry").Logger()

	ctx := WithLogger(context.Background(), logger)
	Ctx(ctx).Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "registry", entry[FieldComponent])
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	assert.Equal(t, L().GetLevel(), Ctx(context.Background()).GetLevel())
}
