package packet

// Client-origin connection packets.
const (
	PingID                 ID = 10000
	CryptoHandshakeStartID ID = 10001
	KeepaliveID            ID = 10002
	LoginID                ID = 10003
	DisconnectID           ID = 10004
)

// PingPacket probes a server for latency and player count. It is sent
// outside the session and therefore never encrypted.
type PingPacket struct {
	PingID uint32
}

func (*PingPacket) Meta() Meta {
	return Meta{ID: PingID, Name: "Ping", Direction: ClientToServer, Bookkeeping: true}
}

func (p *PingPacket) Encode(buf *Buffer) {
	buf.WriteU32(p.PingID)
}

func (p *PingPacket) Decode(buf *Buffer) (err error) {
	p.PingID, err = buf.ReadU32()
	return err
}

// CryptoHandshakeStartPacket opens a session: the client announces its
// protocol version and public key.
type CryptoHandshakeStartPacket struct {
	Protocol   uint16
	PublicKey  [32]byte
	Standalone bool
}

func (*CryptoHandshakeStartPacket) Meta() Meta {
	return Meta{ID: CryptoHandshakeStartID, Name: "CryptoHandshakeStart", Direction: ClientToServer, Bookkeeping: true}
}

func (p *CryptoHandshakeStartPacket) Encode(buf *Buffer) {
	buf.WriteU16(p.Protocol)
	buf.WriteKey(p.PublicKey)
	buf.WriteBool(p.Standalone)
}

func (p *CryptoHandshakeStartPacket) Decode(buf *Buffer) (err error) {
	if p.Protocol, err = buf.ReadU16(); err != nil {
		return err
	}
	if p.PublicKey, err = buf.ReadKey(); err != nil {
		return err
	}
	p.Standalone, err = buf.ReadBool()
	return err
}

// KeepalivePacket tells the server the client is alive.
type KeepalivePacket struct{}

func (*KeepalivePacket) Meta() Meta {
	return Meta{ID: KeepaliveID, Name: "Keepalive", Direction: ClientToServer, Encrypted: true, Bookkeeping: true}
}

func (*KeepalivePacket) Encode(*Buffer)       {}
func (*KeepalivePacket) Decode(*Buffer) error { return nil }

// LoginPacket authenticates against a central server.
type LoginPacket struct {
	AccountID   int32
	AccountName string
	Token       string
}

func (*LoginPacket) Meta() Meta {
	return Meta{ID: LoginID, Name: "Login", Direction: ClientToServer, Encrypted: true, Bookkeeping: true}
}

func (p *LoginPacket) Encode(buf *Buffer) {
	buf.WriteI32(p.AccountID)
	buf.WriteString(p.AccountName)
	buf.WriteString(p.Token)
}

func (p *LoginPacket) Decode(buf *Buffer) (err error) {
	if p.AccountID, err = buf.ReadI32(); err != nil {
		return err
	}
	if p.AccountName, err = buf.ReadString(); err != nil {
		return err
	}
	p.Token, err = buf.ReadString()
	return err
}

// DisconnectPacket tells the server the client is leaving.
type DisconnectPacket struct{}

func (*DisconnectPacket) Meta() Meta {
	return Meta{ID: DisconnectID, Name: "Disconnect", Direction: ClientToServer, Bookkeeping: true}
}

func (*DisconnectPacket) Encode(*Buffer)       {}
func (*DisconnectPacket) Decode(*Buffer) error { return nil }
