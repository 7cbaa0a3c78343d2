package packet

import "fmt"

// Server-origin connection packets.
const (
	PingResponseID            ID = 20000
	CryptoHandshakeResponseID ID = 20001
	KeepaliveResponseID       ID = 20002
	ServerDisconnectID        ID = 20003
	LoggedInID                ID = 20004
	LoginFailedID             ID = 20005
	ServerNoticeID            ID = 20006
	ProtocolMismatchID        ID = 20007
)

// PingResponsePacket answers a PingPacket.
type PingResponsePacket struct {
	PingID      uint32
	PlayerCount uint32
}

func (*PingResponsePacket) Meta() Meta {
	return Meta{ID: PingResponseID, Name: "PingResponse", Direction: ServerToClient, Bookkeeping: true}
}

func (p *PingResponsePacket) Encode(buf *Buffer) {
	buf.WriteU32(p.PingID)
	buf.WriteU32(p.PlayerCount)
}

func (p *PingResponsePacket) Decode(buf *Buffer) (err error) {
	if p.PingID, err = buf.ReadU32(); err != nil {
		return err
	}
	p.PlayerCount, err = buf.ReadU32()
	return err
}

// CryptoHandshakeResponsePacket completes the key exchange.
type CryptoHandshakeResponsePacket struct {
	Protocol  uint16
	PublicKey [32]byte
	TPS       uint32
}

func (*CryptoHandshakeResponsePacket) Meta() Meta {
	return Meta{ID: CryptoHandshakeResponseID, Name: "CryptoHandshakeResponse", Direction: ServerToClient, Bookkeeping: true}
}

func (p *CryptoHandshakeResponsePacket) Encode(buf *Buffer) {
	buf.WriteU16(p.Protocol)
	buf.WriteKey(p.PublicKey)
	buf.WriteU32(p.TPS)
}

func (p *CryptoHandshakeResponsePacket) Decode(buf *Buffer) (err error) {
	if p.Protocol, err = buf.ReadU16(); err != nil {
		return err
	}
	if p.PublicKey, err = buf.ReadKey(); err != nil {
		return err
	}
	p.TPS, err = buf.ReadU32()
	return err
}

// KeepaliveResponsePacket answers a KeepalivePacket.
type KeepaliveResponsePacket struct {
	TPS         uint32
	PlayerCount uint32
}

func (*KeepaliveResponsePacket) Meta() Meta {
	return Meta{ID: KeepaliveResponseID, Name: "KeepaliveResponse", Direction: ServerToClient, Encrypted: true, Bookkeeping: true}
}

func (p *KeepaliveResponsePacket) Encode(buf *Buffer) {
	buf.WriteU32(p.TPS)
	buf.WriteU32(p.PlayerCount)
}

func (p *KeepaliveResponsePacket) Decode(buf *Buffer) (err error) {
	if p.TPS, err = buf.ReadU32(); err != nil {
		return err
	}
	p.PlayerCount, err = buf.ReadU32()
	return err
}

// ServerDisconnectPacket ends the session from the server side.
type ServerDisconnectPacket struct {
	Message string
}

func (*ServerDisconnectPacket) Meta() Meta {
	return Meta{ID: ServerDisconnectID, Name: "ServerDisconnect", Direction: ServerToClient, Bookkeeping: true}
}

func (p *ServerDisconnectPacket) Encode(buf *Buffer) {
	buf.WriteString(p.Message)
}

func (p *ServerDisconnectPacket) Decode(buf *Buffer) (err error) {
	p.Message, err = buf.ReadString()
	return err
}

// LoggedInPacket confirms a successful login.
type LoggedInPacket struct {
	TPS uint32
}

func (*LoggedInPacket) Meta() Meta {
	return Meta{ID: LoggedInID, Name: "LoggedIn", Direction: ServerToClient, Encrypted: true, Bookkeeping: true}
}

func (p *LoggedInPacket) Encode(buf *Buffer) {
	buf.WriteU32(p.TPS)
}

func (p *LoggedInPacket) Decode(buf *Buffer) (err error) {
	p.TPS, err = buf.ReadU32()
	return err
}

// LoginFailReason distinguishes why a login was refused.
type LoginFailReason uint8

const (
	LoginRejected LoginFailReason = iota
	LoginTokenExpired
)

func (r LoginFailReason) String() string {
	switch r {
	case LoginRejected:
		return "rejected"
	case LoginTokenExpired:
		return "token expired"
	default:
		return fmt.Sprintf("LoginFailReason(%d)", r)
	}
}

// LoginFailedPacket refuses a login.
type LoginFailedPacket struct {
	Reason  LoginFailReason
	Message string
}

func (*LoginFailedPacket) Meta() Meta {
	return Meta{ID: LoginFailedID, Name: "LoginFailed", Direction: ServerToClient, Encrypted: true, Bookkeeping: true}
}

func (p *LoginFailedPacket) Encode(buf *Buffer) {
	buf.WriteU8(uint8(p.Reason))
	buf.WriteString(p.Message)
}

func (p *LoginFailedPacket) Decode(buf *Buffer) error {
	reason, err := buf.ReadU8()
	if err != nil {
		return err
	}
	p.Reason = LoginFailReason(reason)
	if p.Reason != LoginRejected && p.Reason != LoginTokenExpired {
		return malformed("invalid login fail reason %d", reason)
	}
	p.Message, err = buf.ReadString()
	return err
}

// ServerNoticePacket carries a human-readable message for the player.
type ServerNoticePacket struct {
	Message string
}

func (*ServerNoticePacket) Meta() Meta {
	return Meta{ID: ServerNoticeID, Name: "ServerNotice", Direction: ServerToClient}
}

func (p *ServerNoticePacket) Encode(buf *Buffer) {
	buf.WriteString(p.Message)
}

func (p *ServerNoticePacket) Decode(buf *Buffer) (err error) {
	p.Message, err = buf.ReadString()
	return err
}

// ProtocolMismatchPacket reports that the server speaks another version.
type ProtocolMismatchPacket struct {
	ServerProtocol uint16
}

func (*ProtocolMismatchPacket) Meta() Meta {
	return Meta{ID: ProtocolMismatchID, Name: "ProtocolMismatch", Direction: ServerToClient, Bookkeeping: true}
}

func (p *ProtocolMismatchPacket) Encode(buf *Buffer) {
	buf.WriteU16(p.ServerProtocol)
}

func (p *ProtocolMismatchPacket) Decode(buf *Buffer) (err error) {
	p.ServerProtocol, err = buf.ReadU16()
	return err
}
