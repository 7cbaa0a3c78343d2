// Package gamenet implements the network core of a real-time multiplayer
// client: an encrypted session with one game server, typed packet dispatch,
// and keepalive handling, all without blocking the host's main loop.
//
// # Getting Started
//
// Create a Manager, register listeners, connect, and drive callbacks from the
// main loop:
//
//	options := gamenet.NewOptions()
//	options.Credentials = account
//
//	mgr, err := gamenet.NewManager(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Disconnect(false)
//
//	gamenet.Listen(mgr, func(p *packet.ServerNoticePacket) {
//	    fmt.Println("notice:", p.Message)
//	})
//	mgr.OnDisconnect(func(err error) {
//	    fmt.Println("disconnected:", err)
//	})
//
//	if err := mgr.Connect("central.example.com", 4201, false); err != nil {
//	    log.Fatal(err)
//	}
//
//	for mgr.Connected() {
//	    mgr.Iterate()
//	    time.Sleep(mgr.IterationInterval())
//	}
//
// # Connection States
//
// A session moves through [StateConnecting] (handshake sent), then
// [StateHandshaken] (keys exchanged) to either [StateAuthenticated] on a
// central server or [StateStandalone] on a standalone server. Any failure
// returns it to [StateDisconnected] and reports the cause to the
// OnDisconnect callback:
//
//   - [ProtocolMismatchError] when the server speaks another version
//   - [AuthError] when the login is rejected, expired or never answered
//   - [ServerDisconnectError] when the server closes the session
//   - [ErrHandshakeTimeout] and [ErrDeadPeer] when the server goes silent
//   - [ConnectionError] wrapping [ErrTransportFailure] when the socket fails
//
// The Manager never reconnects on its own.
//
// # Threading
//
// Each session runs a send goroutine and a receive goroutine. Connection
// packets are handled on the receive goroutine. Every other packet is queued
// and handed to user callbacks inside [Manager.Iterate], on whichever
// goroutine calls it. Send and TaskPingServers only queue work and never
// block.
//
// Game packets passed to Send before the session is established are held and
// written, in order, once it is.
package gamenet
