package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestStringToLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"3", zapcore.Level(-3), false},
		{"0", zapcore.InfoLevel, true},
		{"-2", zapcore.InfoLevel, true},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tc := range cases {
		got, err := StringToLevel(tc.in, zapcore.InfoLevel)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
		} else {
			assert.NoError(t, err, tc.in)
		}
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestConsoleHonorsLevelFlag(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	log, err := New("stepd", Options{Console: &console})
	require.NoError(t, err)

	log.V(1).Info("hidden detail")
	log.Info("visible")
	log.Flush()
	assert.NotContains(t, console.String(), "hidden detail")
	assert.Contains(t, console.String(), "visible")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	verbosity := AddLevelFlag(fs, log.SetLevel)
	assert.Empty(t, verbosity.String())
	require.NoError(t, fs.Parse([]string{"-v", "2"}))
	assert.Equal(t, "2", verbosity.String())
	assert.Equal(t, zapcore.Level(-2), log.Level())

	require.Error(t, fs.Parse([]string{"-v", "shout"}))

	log.V(1).Info("now shown")
	log.Flush()
	assert.Contains(t, console.String(), "now shown")
}

func TestFileSinkWritesJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "stepd.log")
	log, err := New("stepd", Options{File: path, Console: &bytes.Buffer{}})
	require.NoError(t, err)

	log.V(4).Info("deep detail", "pc", "0x1")
	log.Flush()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "deep detail", entry["msg"])
	assert.Equal(t, "0x1", entry["pc"])
	assert.Equal(t, "stepd", entry["logger"])
}

func TestInvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New("stepd", Options{Level: "chatty"})
	require.Error(t, err)
}
