package main

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/gamenet"
	"github.com/opd-ai/gamenet/internal/testserver"
)

func TestParseCLIFlags(t *testing.T) {
	config, err := parseCLIFlags([]string{"-address", "10.0.0.1", "-port", "9000", "-network", "tcp", "-standalone"})
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", config.address)
	assert.Equal(t, uint(9000), config.port)
	assert.Equal(t, "tcp", config.network)
	assert.True(t, config.standalone)
	assert.Equal(t, 10*time.Second, config.timeout)
}

func TestValidateCLIConfig(t *testing.T) {
	valid := func() *CLIConfig {
		c, err := parseCLIFlags(nil)
		require.NoError(t, err)
		return c
	}

	cases := []struct {
		name   string
		mutate func(*CLIConfig)
	}{
		{"port zero", func(c *CLIConfig) { c.port = 0 }},
		{"port too big", func(c *CLIConfig) { c.port = 70000 }},
		{"empty address", func(c *CLIConfig) { c.address = "" }},
		{"bad network", func(c *CLIConfig) { c.network = "quic" }},
		{"zero timeout", func(c *CLIConfig) { c.timeout = 0 }},
		{"negative duration", func(c *CLIConfig) { c.duration = -time.Second }},
		{"account id too big", func(c *CLIConfig) { c.accountID = math.MaxInt32 + 1 }},
		{"account id too small", func(c *CLIConfig) { c.accountID = math.MinInt32 - 1 }},
		{"short key", func(c *CLIConfig) { c.serverKey = "abcd" }},
		{"non-hex key", func(c *CLIConfig) { c.serverKey = strings.Repeat("zz", 32) }},
		{"bad ping list", func(c *CLIConfig) { c.pingList = "eu" }},
		{"bad log level", func(c *CLIConfig) { c.logLevel = "loud" }},
	}

	require.NoError(t, validateCLIConfig(valid()))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			assert.Error(t, validateCLIConfig(c))
		})
	}
}

func TestParsePingList(t *testing.T) {
	servers, err := parsePingList("eu=eu.example.com:4201, us=us.example.com:4201")
	require.NoError(t, err)
	assert.Equal(t, []gamenet.GameServer{
		{ID: "eu", Address: "eu.example.com:4201"},
		{ID: "us", Address: "us.example.com:4201"},
	}, servers)

	servers, err = parsePingList("")
	require.NoError(t, err)
	assert.Empty(t, servers)
}

func TestFlagCredentials(t *testing.T) {
	_, err := flagCredentials{}.AuthToken()
	assert.Error(t, err)

	token, err := flagCredentials{token: "t"}.AuthToken()
	require.NoError(t, err)
	assert.Equal(t, "t", token)
}

func TestRunAgainstStandaloneServer(t *testing.T) {
	srv, err := testserver.Start(testserver.Config{})
	require.NoError(t, err)
	defer srv.Close()

	config, err := parseCLIFlags([]string{
		"-address", srv.Host(),
		"-port", strings.TrimPrefix(srv.Address(), srv.Host()+":"),
		"-standalone",
		"-duration", "100ms",
		"-ping", "self=" + srv.Address(),
	})
	require.NoError(t, err)
	require.NoError(t, validateCLIConfig(config))

	assert.NoError(t, run(context.Background(), config))
}

func TestRunLoginRejected(t *testing.T) {
	srv, err := testserver.Start(testserver.Config{Token: "good"})
	require.NoError(t, err)
	defer srv.Close()

	config, err := parseCLIFlags([]string{
		"-address", srv.Host(),
		"-port", strings.TrimPrefix(srv.Address(), srv.Host()+":"),
		"-token", "bad",
	})
	require.NoError(t, err)

	err = run(context.Background(), config)
	assert.ErrorIs(t, err, gamenet.ErrAuthRejected)
}
