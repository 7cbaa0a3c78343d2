package gamenet

import (
	"fmt"
	"time"

	"github.com/opd-ai/gamenet/packet"
)

// ProtocolVersion is the wire protocol spoken by this client.
const ProtocolVersion uint16 = 1

// Defaults used by NewOptions.
const (
	DefaultKeepaliveInterval = 5 * time.Second
	DefaultDisconnectAfter   = 15 * time.Second
	DefaultTickInterval      = 250 * time.Millisecond
	DefaultReceiveTimeout    = 250 * time.Millisecond
	DefaultDialTimeout       = 5 * time.Second
	DefaultIterationInterval = 16 * time.Millisecond
)

// Options contains configuration for a Manager.
type Options struct {
	// Network is "udp" or "tcp".
	Network         string
	ProtocolVersion uint16

	// KeepaliveInterval is how often an established session pings the server.
	KeepaliveInterval time.Duration
	// DisconnectAfter is how long the session may go without receiving
	// anything before it is torn down.
	DisconnectAfter time.Duration
	// TickInterval bounds how long the send loop sleeps between checks.
	TickInterval time.Duration
	// ReceiveTimeout bounds a single socket read.
	ReceiveTimeout    time.Duration
	DialTimeout       time.Duration
	IterationInterval time.Duration

	// Credentials supplies the login for central servers. Standalone
	// sessions do not need it.
	Credentials CredentialProvider
	// Servers receives ping results from TaskPingServers.
	Servers ServerDirectory
	// Registry decodes inbound packets. Nil means packet.DefaultRegistry().
	// A custom registry must start from packet.DefaultRegistry(); NewManager
	// rejects one that is missing connection packets.
	Registry *packet.Registry

	TimeProvider TimeProvider
}

// NewOptions creates a new Options with default values.
func NewOptions() *Options {
	return &Options{
		Network:           "udp",
		ProtocolVersion:   ProtocolVersion,
		KeepaliveInterval: DefaultKeepaliveInterval,
		DisconnectAfter:   DefaultDisconnectAfter,
		TickInterval:      DefaultTickInterval,
		ReceiveTimeout:    DefaultReceiveTimeout,
		DialTimeout:       DefaultDialTimeout,
		IterationInterval: DefaultIterationInterval,
		TimeProvider:      DefaultTimeProvider{},
	}
}

// normalize returns a copy of o with zero fields replaced by defaults.
func (o *Options) normalize() *Options {
	def := NewOptions()
	if o == nil {
		def.Registry = packet.DefaultRegistry()
		return def
	}

	out := *o
	if out.Network == "" {
		out.Network = def.Network
	}
	if out.ProtocolVersion == 0 {
		out.ProtocolVersion = def.ProtocolVersion
	}
	if out.KeepaliveInterval <= 0 {
		out.KeepaliveInterval = def.KeepaliveInterval
	}
	if out.DisconnectAfter <= 0 {
		out.DisconnectAfter = def.DisconnectAfter
	}
	if out.TickInterval <= 0 {
		out.TickInterval = def.TickInterval
	}
	if out.ReceiveTimeout <= 0 {
		out.ReceiveTimeout = def.ReceiveTimeout
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = def.DialTimeout
	}
	if out.IterationInterval <= 0 {
		out.IterationInterval = def.IterationInterval
	}
	if out.TimeProvider == nil {
		out.TimeProvider = def.TimeProvider
	}
	if out.Registry == nil {
		out.Registry = packet.DefaultRegistry()
	}
	return &out
}

// CredentialProvider supplies the account used to log in to a central
// server.
type CredentialProvider interface {
	AccountID() int32
	AccountName() string
	// AuthToken returns the current token, or an error if none is stored.
	AuthToken() (string, error)
}

// GameServer is one entry of a server directory.
type GameServer struct {
	ID      string
	Address string // host:port
}

// ServerDirectory lists servers to ping and records the results. UpdatePing
// is always called from Manager.Iterate.
type ServerDirectory interface {
	Servers() []GameServer
	UpdatePing(id string, rtt time.Duration, players uint32)
}

// validate checks that the registry decodes every packet with a builtin
// handler.
func (o *Options) validate() error {
	for _, id := range connectionPacketIDs {
		if _, ok := o.Registry.Lookup(id); !ok {
			return fmt.Errorf("%w: packet %d not registered", ErrIncompleteRegistry, id)
		}
	}
	return nil
}
