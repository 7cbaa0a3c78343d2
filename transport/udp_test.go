package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/gamenet/limits"
)

func newUDPPair(t *testing.T) (client, server *UDPSocket) {
	t.Helper()
	ctx := context.Background()

	server, err := ListenUDP(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	client, err = DialUDP(ctx, server.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, server
}

func TestUDPSocketRoundTrip(t *testing.T) {
	client, server := newUDPPair(t)

	require.NoError(t, client.Send([]byte("hello")))

	frame, from, err := server.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), frame)

	require.NoError(t, server.SendTo([]byte("world"), from))

	frame, from, err = client.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), frame)
	assert.True(t, SameAddr(from, client.RemoteAddr()))
}

func TestUDPSocketReceiveTimeout(t *testing.T) {
	client, _ := newUDPPair(t)

	start := time.Now()
	_, _, err := client.Receive(50 * time.Millisecond)
	assert.True(t, IsTimeout(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestUDPSocketSendToOtherServer(t *testing.T) {
	client, _ := newUDPPair(t)

	other, err := ListenUDP(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, client.SendTo([]byte("ping"), other.LocalAddr()))

	frame, _, err := other.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("ping"), frame)

	local := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: client.LocalAddr().(*net.UDPAddr).Port}
	require.NoError(t, other.SendTo([]byte("pong"), local))
	_, from, err := client.Receive(time.Second)
	require.NoError(t, err)
	assert.False(t, SameAddr(from, client.RemoteAddr()), "reply must be attributed to its real sender")
}

func TestUDPSocketFrameLimits(t *testing.T) {
	client, _ := newUDPPair(t)

	assert.ErrorIs(t, client.Send(nil), limits.ErrFrameEmpty)
	assert.ErrorIs(t, client.Send(make([]byte, limits.MaxDatagramSize+1)), limits.ErrFrameTooLarge)
}

func TestUDPSocketListenerCannotSend(t *testing.T) {
	_, server := newUDPPair(t)
	assert.ErrorIs(t, server.Send([]byte("x")), ErrNotDialed)
	assert.Nil(t, server.RemoteAddr())
}

func TestUDPSocketClose(t *testing.T) {
	client, _ := newUDPPair(t)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	_, _, err := client.Receive(time.Second)
	assert.ErrorIs(t, err, ErrSocketClosed)
}

func TestDialUnknownNetwork(t *testing.T) {
	_, err := Dial(context.Background(), "sctp", "127.0.0.1:1")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestSameAddr(t *testing.T) {
	client, server := newUDPPair(t)

	assert.True(t, SameAddr(server.LocalAddr(), server.LocalAddr()))
	assert.False(t, SameAddr(client.LocalAddr(), server.LocalAddr()))
	assert.False(t, SameAddr(nil, server.LocalAddr()))
}
