package gamenet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/gamenet/internal/testserver"
	"github.com/opd-ai/gamenet/packet"
)

type staticCredentials struct {
	id    int32
	name  string
	token string
	err   error
}

func (c staticCredentials) AccountID() int32           { return c.id }
func (c staticCredentials) AccountName() string        { return c.name }
func (c staticCredentials) AuthToken() (string, error) { return c.token, c.err }

type pingResult struct {
	rtt     time.Duration
	players uint32
}

type fakeDirectory struct {
	servers []GameServer

	mu      sync.Mutex
	results map[string]pingResult
}

func (d *fakeDirectory) Servers() []GameServer { return d.servers }

func (d *fakeDirectory) UpdatePing(id string, rtt time.Duration, players uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.results == nil {
		d.results = make(map[string]pingResult)
	}
	d.results[id] = pingResult{rtt: rtt, players: players}
}

func (d *fakeDirectory) snapshot() map[string]pingResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]pingResult, len(d.results))
	for k, v := range d.results {
		out[k] = v
	}
	return out
}

// textPacket is a game packet used to exercise encrypted user traffic.
type textPacket struct {
	Text string
}

const textPacketID packet.ID = 7

func (*textPacket) Meta() packet.Meta {
	return packet.Meta{ID: textPacketID, Name: "Text", Direction: packet.ClientToServer, Encrypted: true}
}

func (p *textPacket) Encode(buf *packet.Buffer) { buf.WriteString(p.Text) }

func (p *textPacket) Decode(buf *packet.Buffer) (err error) {
	p.Text, err = buf.ReadString()
	return err
}

func gameRegistry() *packet.Registry {
	reg := packet.DefaultRegistry()
	reg.MustRegister(func() packet.Packet { return &textPacket{} })
	return reg
}

func testOptions() *Options {
	opts := NewOptions()
	opts.TickInterval = 10 * time.Millisecond
	opts.ReceiveTimeout = 20 * time.Millisecond
	opts.DialTimeout = 2 * time.Second
	opts.Registry = gameRegistry()
	return opts
}

func newTestManager(t *testing.T, opts *Options) *Manager {
	t.Helper()
	m, err := NewManager(opts)
	require.NoError(t, err)
	t.Cleanup(func() { m.Disconnect(true) })
	return m
}

func startServer(t *testing.T, cfg testserver.Config) *testserver.Server {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = gameRegistry()
	}
	srv, err := testserver.Start(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func waitEstablished(t *testing.T, m *Manager) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := m.WaitEstablished(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "session neither established nor failed")
	return err
}

// waitDisconnect pumps Iterate until the OnDisconnect callback fires and
// returns the reason it was given.
func waitDisconnect(t *testing.T, m *Manager) error {
	t.Helper()
	got := make(chan error, 1)
	m.OnDisconnect(func(err error) { got <- err })

	var reason error
	require.Eventually(t, func() bool {
		m.Iterate()
		select {
		case reason = <-got:
			return true
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	return reason
}
