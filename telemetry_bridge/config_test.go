package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	bindConfigFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveConfig_Defaults(t *testing.T) {
	cfg, err := resolveConfig(newFlagCmd(t), envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, Config{
		MQTTBroker:  "tcp://localhost:1883",
		MQTTTopic:   "vehicle/+/can",
		NATSSubject: "telemetry.records",
		Interface:   "can0",
		LogLevel:    "info",
	}, cfg)
}

func TestResolveConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cantel.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"nats_url": "nats://file:4222",
		"mqtt_topic": "fleet/+/j1939",
		"dbc": "file.dbc"
	}`), 0o644))

	env := envFrom(map[string]string{
		"CANTEL_NATS_URL":    "nats://env:4222",
		"CANTEL_MQTT_BROKER": "tcp://env:1883",
		"CANTEL_DBC":         "env.dbc",
		"CANTEL_LOG":         "debug",
	})
	cmd := newFlagCmd(t, "--config", path, "--dbc", "flag.dbc")

	cfg, err := resolveConfig(cmd, env)
	require.NoError(t, err)
	assert.Equal(t, "tcp://env:1883", cfg.MQTTBroker, "env beats built-in default")
	assert.Equal(t, "nats://file:4222", cfg.NATSURL, "file beats env")
	assert.Equal(t, "fleet/+/j1939", cfg.MQTTTopic)
	assert.Equal(t, "flag.dbc", cfg.DBCPath, "flag beats file and env")
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestResolveConfig_FileErrors(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "unknown.json")
	require.NoError(t, os.WriteFile(unknown, []byte(`{"nats":"x"}`), 0o644))

	_, err := resolveConfig(newFlagCmd(t, "--config", unknown), envFrom(nil))
	assert.Error(t, err)

	_, err = resolveConfig(newFlagCmd(t, "--config", filepath.Join(dir, "missing.json")), envFrom(nil))
	assert.Error(t, err)
}
