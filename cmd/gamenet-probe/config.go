package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/opd-ai/gamenet"
)

// fileConfig is the layout of a -config file:
//
//	address = "play.example.com"
//	port = 4201
//	network = "udp"
//	timeout = "10s"
//
//	[account]
//	id = 42
//	name = "alice"
//
//	[[servers]]
//	id = "eu"
//	address = "eu.example.com:4201"
//
// The auth token is never read from the file.
type fileConfig struct {
	Address    string `toml:"address"`
	Port       int64  `toml:"port"`
	Network    string `toml:"network"`
	Standalone bool   `toml:"standalone"`
	ServerKey  string `toml:"server_key"`
	Timeout    string `toml:"timeout"`
	Duration   string `toml:"duration"`
	LogLevel   string `toml:"log_level"`

	Account struct {
		ID   int64  `toml:"id"`
		Name string `toml:"name"`
	} `toml:"account"`

	Servers []fileServer `toml:"servers"`
}

type fileServer struct {
	ID      string `toml:"id"`
	Address string `toml:"address"`
}

// loadConfigFile fills config from the TOML file at path. Flags named in set
// were given on the command line and keep their values.
func loadConfigFile(path string, config *CLIConfig, set map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}

	if fc.Address != "" && !set["address"] {
		config.address = fc.Address
	}
	if fc.Port != 0 && !set["port"] {
		if fc.Port < 0 || fc.Port > 65535 {
			return fmt.Errorf("config %s: invalid port %d", path, fc.Port)
		}
		config.port = uint(fc.Port)
	}
	if fc.Network != "" && !set["network"] {
		config.network = fc.Network
	}
	if fc.Standalone && !set["standalone"] {
		config.standalone = true
	}
	if fc.ServerKey != "" && !set["server-key"] {
		config.serverKey = fc.ServerKey
	}
	if fc.LogLevel != "" && !set["log-level"] {
		config.logLevel = fc.LogLevel
	}
	if fc.Account.ID != 0 && !set["account-id"] {
		config.accountID = fc.Account.ID
	}
	if fc.Account.Name != "" && !set["account-name"] {
		config.accountName = fc.Account.Name
	}

	if err := setDuration(&config.timeout, fc.Timeout, set["timeout"]); err != nil {
		return fmt.Errorf("config %s: timeout: %w", path, err)
	}
	if err := setDuration(&config.duration, fc.Duration, set["duration"]); err != nil {
		return fmt.Errorf("config %s: duration: %w", path, err)
	}

	for _, s := range fc.Servers {
		if s.ID == "" || s.Address == "" {
			return fmt.Errorf("config %s: server entries need id and address", path)
		}
		config.servers = append(config.servers, gamenet.GameServer{ID: s.ID, Address: s.Address})
	}
	return nil
}

func setDuration(dst *time.Duration, value string, fromFlag bool) error {
	if value == "" || fromFlag {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
