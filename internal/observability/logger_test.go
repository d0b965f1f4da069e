package observability

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_LevelIsInstanceScoped(t *testing.T) {
	before := zerolog.GlobalLevel()

	debugLog := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	errorLog := NewLogger(LoggingConfig{Level: "error", Format: "json", Output: "stdout"})

	// Each logger keeps its own level; creating one never reconfigures
	// the other or the process-global zerolog state.
	assert.Equal(t, zerolog.DebugLevel, debugLog.GetLevel())
	assert.Equal(t, zerolog.ErrorLevel, errorLog.GetLevel())
	assert.Equal(t, before, zerolog.GlobalLevel())
}

func TestNewLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	log := NewLogger(LoggingConfig{Level: "chatty"})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, parseLevel(tc.in), "level %q", tc.in)
	}
}
