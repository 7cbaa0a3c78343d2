package packet

import (
	"fmt"
	"sync"
)

// Constructor returns a new zero packet ready for Decode.
type Constructor func() Packet

// Registry maps packet IDs to constructors. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[ID]Constructor
	metas map[ID]Meta
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ctors: make(map[ID]Constructor),
		metas: make(map[ID]Meta),
	}
}

// connectionPackets are the packets the connection itself speaks.
var connectionPackets = []Constructor{
	func() Packet { return &PingPacket{} },
	func() Packet { return &CryptoHandshakeStartPacket{} },
	func() Packet { return &KeepalivePacket{} },
	func() Packet { return &LoginPacket{} },
	func() Packet { return &DisconnectPacket{} },
	func() Packet { return &PingResponsePacket{} },
	func() Packet { return &CryptoHandshakeResponsePacket{} },
	func() Packet { return &KeepaliveResponsePacket{} },
	func() Packet { return &ServerDisconnectPacket{} },
	func() Packet { return &LoggedInPacket{} },
	func() Packet { return &LoginFailedPacket{} },
	func() Packet { return &ServerNoticePacket{} },
	func() Packet { return &ProtocolMismatchPacket{} },
}

// DefaultRegistry returns a registry holding every connection packet in both
// directions.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, ctor := range connectionPackets {
		r.MustRegister(ctor)
	}
	return r
}

// Register adds a packet type. The ID is taken from the constructed
// packet's Meta.
func (r *Registry) Register(ctor Constructor) error {
	meta := ctor().Meta()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.metas[meta.ID]; ok {
		return fmt.Errorf("%w: %d used by %s and %s", ErrDuplicatePacket, meta.ID, existing.Name, meta.Name)
	}
	r.ctors[meta.ID] = ctor
	r.metas[meta.ID] = meta
	return nil
}

// MustRegister is like Register but panics on a duplicate ID.
func (r *Registry) MustRegister(ctor Constructor) {
	if err := r.Register(ctor); err != nil {
		panic(err)
	}
}

// New constructs an empty packet for id.
func (r *Registry) New(id ID) (Packet, bool) {
	r.mu.RLock()
	ctor, ok := r.ctors[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Lookup returns the static properties registered for id.
func (r *Registry) Lookup(id ID) (Meta, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.metas[id]
	return meta, ok
}

// Len returns the number of registered packet types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ctors)
}
