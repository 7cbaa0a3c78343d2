package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/gamenet"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probe.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sampleConfig = `
address = "play.example.com"
port = 5000
network = "tcp"
timeout = "3s"
log_level = "debug"

[account]
id = 42
name = "alice"

[[servers]]
id = "eu"
address = "eu.example.com:4201"

[[servers]]
id = "us"
address = "us.example.com:4201"
`

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	config, err := parseCLIFlags([]string{"-config", path})
	require.NoError(t, err)

	assert.Equal(t, "play.example.com", config.address)
	assert.Equal(t, uint(5000), config.port)
	assert.Equal(t, "tcp", config.network)
	assert.Equal(t, 3*time.Second, config.timeout)
	assert.Equal(t, 30*time.Second, config.duration)
	assert.Equal(t, "debug", config.logLevel)
	assert.Equal(t, int64(42), config.accountID)
	assert.Equal(t, "alice", config.accountName)
	assert.Equal(t, []gamenet.GameServer{
		{ID: "eu", Address: "eu.example.com:4201"},
		{ID: "us", Address: "us.example.com:4201"},
	}, config.servers)
	require.NoError(t, validateCLIConfig(config))
}

func TestConfigFileFlagsWin(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	config, err := parseCLIFlags([]string{"-port", "6000", "-timeout", "1s", "-config", path})
	require.NoError(t, err)

	assert.Equal(t, uint(6000), config.port)
	assert.Equal(t, time.Second, config.timeout)
	assert.Equal(t, "play.example.com", config.address)
}

func TestConfigFileErrors(t *testing.T) {
	cases := map[string]string{
		"syntax":         "address = ",
		"bad timeout":    `timeout = "soon"`,
		"bad port":       "port = 70000",
		"server missing": "[[servers]]\nid = \"eu\"\n",
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseCLIFlags([]string{"-config", writeConfig(t, body)})
			assert.Error(t, err)
		})
	}

	_, err := parseCLIFlags([]string{"-config", filepath.Join(t.TempDir(), "missing.toml")})
	assert.Error(t, err)
}
