//go:build linux

package main

import (
	"bytes"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/tcpecho/api"
)

func parse(t *testing.T, argv ...string) *options {
	t.Helper()
	o := &options{}
	fs := pflag.NewFlagSet("tcpecho-server", pflag.ContinueOnError)
	addFlags(fs, o)
	require.NoError(t, fs.Parse(argv))
	return o
}

func TestDefaults(t *testing.T) {
	cfg, err := buildConfig(parse(t))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, 10, cfg.Backlog)
	assert.Equal(t, 1024, cfg.BufferSize)
	assert.Equal(t, -1, cfg.CPU)
}

func TestIPv6Bind(t *testing.T) {
	cfg, err := buildConfig(parse(t, "--bind", "::1", "--port", "7"))
	require.NoError(t, err)
	assert.Equal(t, "[::1]:7", cfg.ListenAddr)
}

func TestConfigurationErrors(t *testing.T) {
	for name, argv := range map[string][]string{
		"hostname": {"--bind", "localhost"},
		"port":     {"--port", "70000"},
		"backlog":  {"--backlog", "0"},
		"buffer":   {"--buffer-size", "0"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := buildConfig(parse(t, argv...))
			assert.ErrorIs(t, err, api.ErrConfiguration)
		})
	}
}

func TestCommandFailsOnBadLogLevel(t *testing.T) {
	var errw bytes.Buffer
	cmd := newRootCommand(&errw)
	cmd.SetArgs([]string{"--port", "0", "--log-level", "loud"})
	assert.ErrorIs(t, cmd.Execute(), api.ErrConfiguration)
}
