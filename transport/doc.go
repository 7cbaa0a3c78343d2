// Package transport moves whole frames between the client and a game server.
//
// A [Socket] hides the difference between datagram and stream networks:
//
//	sock, err := transport.Dial(ctx, "udp", "game.example.com:4201")
//	if err != nil {
//	    return err
//	}
//	defer sock.Close()
//
//	if err := sock.Send(frame); err != nil {
//	    return err
//	}
//	reply, from, err := sock.Receive(250 * time.Millisecond)
//	if transport.IsTimeout(err) {
//	    // nothing yet, poll again
//	}
//
// # UDP
//
// [UDPSocket] binds an unconnected local socket and remembers the dialed
// address. Send targets that address, SendTo reaches any other server over the
// same port, and Receive reports the sender of every datagram so callers can
// tell session traffic from stray replies. Frames are limited to
// limits.MaxDatagramSize.
//
// # TCP
//
// [TCPSocket] prefixes each frame with a big-endian u32 length. A length of
// zero or above limits.MaxStreamFrame poisons the stream and Receive returns
// an error; the caller is expected to close the socket. SendTo returns
// ErrUnsupported.
//
// # Timeouts
//
// Receive never blocks longer than its timeout, which lets a receive loop
// notice shutdown without closing the socket underneath itself. A timeout is
// reported as ErrTimeout and is not a failure.
package transport
