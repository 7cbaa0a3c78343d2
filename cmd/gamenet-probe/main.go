// Package main provides gamenet-probe, a command-line tool that opens a
// session to a game server, waits for it to be established, and reports the
// server tick rate, notices and ping results until interrupted.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/gamenet"
	"github.com/opd-ai/gamenet/crypto"
	"github.com/opd-ai/gamenet/packet"
)

// CLIConfig holds the parsed command-line flags.
type CLIConfig struct {
	address     string
	port        uint
	network     string
	standalone  bool
	serverKey   string
	accountID   int64
	accountName string
	token       string
	pingList    string
	timeout     time.Duration
	duration    time.Duration
	logLevel    string
	configFile  string
	help        bool

	// servers come from the config file and are pinged along with -ping.
	servers []gamenet.GameServer
}

// parseCLIFlags parses command-line flags and returns the configuration.
func parseCLIFlags(args []string) (*CLIConfig, error) {
	config := &CLIConfig{}
	fs := flag.NewFlagSet("gamenet-probe", flag.ContinueOnError)

	// Server
	fs.StringVar(&config.address, "address", "127.0.0.1", "Server address")
	fs.UintVar(&config.port, "port", 4201, "Server port")
	fs.StringVar(&config.network, "network", "udp", "Transport network (udp or tcp)")
	fs.BoolVar(&config.standalone, "standalone", false, "Connect to a standalone server (no login)")
	fs.StringVar(&config.serverKey, "server-key", "", "Hex-encoded pre-shared server public key (implies -standalone)")

	// Account
	fs.Int64Var(&config.accountID, "account-id", 0, "Account ID for central server login")
	fs.StringVar(&config.accountName, "account-name", "", "Account name for central server login")
	fs.StringVar(&config.token, "token", os.Getenv("GAMENET_TOKEN"), "Auth token (default: $GAMENET_TOKEN)")

	// Behaviour
	fs.StringVar(&config.pingList, "ping", "", "Comma-separated id=host:port servers to ping once established")
	fs.DurationVar(&config.timeout, "timeout", 10*time.Second, "Time allowed to establish the session")
	fs.DurationVar(&config.duration, "duration", 30*time.Second, "How long to stay connected (0 = until interrupted)")

	// Logging
	fs.StringVar(&config.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	fs.StringVar(&config.configFile, "config", "", "TOML file with defaults for the flags above")
	fs.BoolVar(&config.help, "help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if config.configFile != "" {
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if err := loadConfigFile(config.configFile, config, set); err != nil {
			return nil, err
		}
	}
	return config, nil
}

// validateCLIConfig validates the CLI configuration.
func validateCLIConfig(config *CLIConfig) error {
	if config.port == 0 || config.port > 65535 {
		return fmt.Errorf("invalid port: must be between 1 and 65535")
	}
	if config.address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if config.network != "udp" && config.network != "tcp" {
		return fmt.Errorf("network must be udp or tcp, got %q", config.network)
	}
	if config.timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if config.duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	if config.accountID < math.MinInt32 || config.accountID > math.MaxInt32 {
		return fmt.Errorf("account id %d does not fit in 32 bits", config.accountID)
	}
	if config.serverKey != "" {
		if _, err := decodeServerKey(config.serverKey); err != nil {
			return err
		}
	}
	if _, err := parsePingList(config.pingList); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(config.logLevel); err != nil {
		return err
	}
	return nil
}

func decodeServerKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("server key: %w", err)
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("server key must be %d bytes, got %d", crypto.KeySize, len(key))
	}
	return key, nil
}

// parsePingList parses "id=host:port,id=host:port".
func parsePingList(s string) ([]gamenet.GameServer, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var servers []gamenet.GameServer
	for _, entry := range strings.Split(s, ",") {
		id, addr, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || id == "" || addr == "" {
			return nil, fmt.Errorf("invalid ping entry %q: want id=host:port", entry)
		}
		servers = append(servers, gamenet.GameServer{ID: id, Address: addr})
	}
	return servers, nil
}

// flagCredentials serves the account given on the command line.
type flagCredentials struct {
	id    int32
	name  string
	token string
}

func (c flagCredentials) AccountID() int32    { return c.id }
func (c flagCredentials) AccountName() string { return c.name }

func (c flagCredentials) AuthToken() (string, error) {
	if c.token == "" {
		return "", errors.New("no token given (use -token or $GAMENET_TOKEN)")
	}
	return c.token, nil
}

// printingDirectory prints ping results as they arrive.
type printingDirectory struct {
	servers []gamenet.GameServer

	mu      sync.Mutex
	results map[string]time.Duration
}

func (d *printingDirectory) Servers() []gamenet.GameServer { return d.servers }

func (d *printingDirectory) UpdatePing(id string, rtt time.Duration, players uint32) {
	d.mu.Lock()
	if d.results == nil {
		d.results = make(map[string]time.Duration)
	}
	d.results[id] = rtt
	d.mu.Unlock()

	fmt.Printf("ping %s: %v, %d players\n", id, rtt.Round(time.Microsecond), players)
}

// createOptions converts CLI configuration to Manager options.
func createOptions(config *CLIConfig, servers []gamenet.GameServer) *gamenet.Options {
	options := gamenet.NewOptions()
	options.Network = config.network
	options.DialTimeout = config.timeout
	options.Credentials = flagCredentials{
		id:    int32(config.accountID),
		name:  config.accountName,
		token: config.token,
	}
	if len(servers) > 0 {
		options.Servers = &printingDirectory{servers: servers}
	}
	return options
}

// setupSignalHandling cancels ctx on interrupt.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	go func() {
		sig := <-sigChan
		logrus.WithField("signal", sig.String()).Info("Shutting down")
		cancel()
	}()
}

func run(ctx context.Context, config *CLIConfig) error {
	servers, _ := parsePingList(config.pingList)
	servers = append(config.servers, servers...)
	mgr, err := gamenet.NewManager(createOptions(config, servers))
	if err != nil {
		return err
	}
	defer mgr.Disconnect(false)

	var ended error
	done := make(chan struct{})
	mgr.OnDisconnect(func(err error) {
		ended = err
		close(done)
	})
	gamenet.Listen(mgr, func(p *packet.ServerNoticePacket) {
		fmt.Printf("notice: %s\n", p.Message)
	})

	port := uint16(config.port)
	if config.serverKey != "" {
		key, _ := decodeServerKey(config.serverKey)
		err = mgr.ConnectStandalone(config.address, port, key)
	} else {
		err = mgr.Connect(config.address, port, config.standalone)
	}
	if err != nil {
		return err
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, config.timeout)
	err = mgr.WaitEstablished(waitCtx)
	cancelWait()
	if err != nil {
		return fmt.Errorf("session not established: %w", err)
	}

	fmt.Printf("connected: state=%s tps=%d\n", mgr.State(), mgr.ServerTPS())

	if len(servers) > 0 {
		if err := mgr.TaskPingServers(); err != nil {
			return err
		}
	}

	var deadline <-chan time.Time
	if config.duration > 0 {
		deadline = time.After(config.duration)
	}

	ticker := time.NewTicker(mgr.IterationInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			fmt.Printf("done: tps=%d\n", mgr.ServerTPS())
			return nil
		case <-ticker.C:
			mgr.Iterate()
		}

		select {
		case <-done:
			return ended
		default:
		}
	}
}

func main() {
	config, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(2)
	}
	if config.help {
		fmt.Println("gamenet-probe: connect to a game server and report its status")
		fmt.Println()
		fmt.Printf("Usage:\n  %s [options]\n\n", os.Args[0])
		fmt.Println("Examples:")
		fmt.Printf("  %s -address play.example.com -port 4201 -standalone\n", os.Args[0])
		fmt.Printf("  %s -account-id 42 -account-name alice -token $TOKEN -ping eu=eu.example.com:4201\n", os.Args[0])
		os.Exit(0)
	}

	if err := validateCLIConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(1)
	}

	level, _ := logrus.ParseLevel(config.logLevel)
	logrus.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	if err := run(ctx, config); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"package":  "main",
			"error":    err.Error(),
		}).Error("Probe failed")
		os.Exit(1)
	}
}
