package gamenet

import (
	"errors"
	"fmt"

	"github.com/opd-ai/gamenet/packet"
)

var (
	// ErrProtocolMismatch indicates the server speaks another protocol version.
	ErrProtocolMismatch = errors.New("protocol version mismatch")

	// ErrTransportFailure indicates the socket could not be opened or failed
	// with something other than a receive timeout.
	ErrTransportFailure = errors.New("transport failure")

	// ErrAuthRejected indicates the central server refused the login.
	ErrAuthRejected = errors.New("login rejected")

	// ErrTokenExpired indicates the auth token is no longer valid.
	ErrTokenExpired = errors.New("auth token expired")

	// ErrTokenMissing indicates no auth token was available for login.
	ErrTokenMissing = errors.New("auth token unavailable")

	// ErrTimeout indicates the peer went silent for too long.
	ErrTimeout = errors.New("connection timed out")

	// ErrNotConnected indicates an operation that needs a session.
	ErrNotConnected = errors.New("not connected")

	// ErrPeerKeyMismatch indicates the server answered with a public key other
	// than the pre-shared one.
	ErrPeerKeyMismatch = errors.New("server public key mismatch")

	// ErrServerDisconnect indicates the server closed the session.
	ErrServerDisconnect = errors.New("disconnected by server")

	// ErrIncompleteRegistry indicates Options.Registry cannot decode the
	// packets the connection handles itself.
	ErrIncompleteRegistry = errors.New("registry lacks connection packets")
)

var (
	// ErrHandshakeTimeout is reported when no handshake response arrives.
	ErrHandshakeTimeout = fmt.Errorf("%w: no handshake response", ErrTimeout)

	// ErrDeadPeer is reported when an established session stops receiving.
	ErrDeadPeer = fmt.Errorf("%w: server stopped responding", ErrTimeout)
)

// ConnectionError represents a failed connection operation with context.
type ConnectionError struct {
	Op   string // operation that caused the error
	Addr string // remote address if relevant
	Err  error  // underlying error
}

func (e *ConnectionError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("gamenet %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("gamenet %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// transportError wraps a socket failure so it matches ErrTransportFailure.
func transportError(op, addr string, err error) *ConnectionError {
	return &ConnectionError{
		Op:   op,
		Addr: addr,
		Err:  fmt.Errorf("%w: %w", ErrTransportFailure, err),
	}
}

// ProtocolMismatchError reports both sides of a version disagreement.
type ProtocolMismatchError struct {
	Client uint16
	Server uint16
}

func (e *ProtocolMismatchError) Error() string {
	return fmt.Sprintf("protocol version mismatch: client %d, server %d", e.Client, e.Server)
}

func (e *ProtocolMismatchError) Unwrap() error {
	return ErrProtocolMismatch
}

// AuthReason classifies a failed login.
type AuthReason uint8

const (
	AuthRejected AuthReason = iota
	AuthTokenExpired
	AuthTokenMissing
	AuthTimeout
)

func (r AuthReason) String() string {
	switch r {
	case AuthRejected:
		return "rejected"
	case AuthTokenExpired:
		return "token expired"
	case AuthTokenMissing:
		return "token missing"
	case AuthTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("AuthReason(%d)", r)
	}
}

// AuthError reports a login failure on the central server path.
type AuthError struct {
	Reason  AuthReason
	Message string // server-provided text, may be empty
	Err     error  // credential provider error, if any
}

func (e *AuthError) Error() string {
	msg := "login failed: " + e.Reason.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() []error {
	var sentinel error
	switch e.Reason {
	case AuthRejected:
		sentinel = ErrAuthRejected
	case AuthTokenExpired:
		sentinel = ErrTokenExpired
	case AuthTokenMissing:
		sentinel = ErrTokenMissing
	case AuthTimeout:
		sentinel = ErrTimeout
	}

	errs := make([]error, 0, 2)
	if sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// authReasonFor maps a LoginFailed reason onto an AuthReason.
func authReasonFor(r packet.LoginFailReason) AuthReason {
	if r == packet.LoginTokenExpired {
		return AuthTokenExpired
	}
	return AuthRejected
}

// ServerDisconnectError carries the message sent with a server disconnect.
type ServerDisconnectError struct {
	Message string
}

func (e *ServerDisconnectError) Error() string {
	if e.Message == "" {
		return ErrServerDisconnect.Error()
	}
	return ErrServerDisconnect.Error() + ": " + e.Message
}

func (e *ServerDisconnectError) Unwrap() error {
	return ErrServerDisconnect
}
