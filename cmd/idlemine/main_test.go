package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/idlemine/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestXPTableCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"xptable"})

	require.NoError(t, root.Execute())

	text := out.String()
	assert.Contains(t, text, "101333")
	assert.Contains(t, text, "14391160")
	assert.Equal(t, 16, strings.Count(text, "\n"))
}

func TestXPTableCmd_All(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"xptable", "--all"})

	require.NoError(t, root.Execute())
	assert.Equal(t, 101, strings.Count(out.String(), "\n"))
}

func TestNewTokenIssuer(t *testing.T) {
	_, err := newTokenIssuer(config.AuthConfig{Issuer: "idlemine"})
	assert.Error(t, err, "secret required outside dev mode")

	tokens, err := newTokenIssuer(config.AuthConfig{Issuer: "idlemine", TokenTTL: 0, AllowDevLogin: true})
	require.NoError(t, err)
	require.NotNil(t, tokens)
}
