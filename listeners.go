package gamenet

import (
	"sync"

	"github.com/opd-ai/gamenet/packet"
)

// Callback receives a decoded packet on the host main loop.
type Callback func(p packet.Packet)

// builtinListener handles a bookkeeping packet on the receive goroutine.
type builtinListener func(s *session, p packet.Packet)

// listenerTable maps packet IDs to handlers. Builtin handlers shadow user
// callbacks for the same ID. Registering an ID again replaces the previous
// entry.
type listenerTable struct {
	mu      sync.RWMutex
	builtin map[packet.ID]builtinListener
	user    map[packet.ID]Callback
}

func newListenerTable() *listenerTable {
	return &listenerTable{
		builtin: make(map[packet.ID]builtinListener),
		user:    make(map[packet.ID]Callback),
	}
}

func (t *listenerTable) addBuiltin(id packet.ID, fn builtinListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.builtin[id] = fn
}

func (t *listenerTable) addUser(id packet.ID, cb Callback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.user[id] = cb
}

func (t *listenerTable) removeUser(id packet.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.user, id)
}

func (t *listenerTable) removeAllUser() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.user = make(map[packet.ID]Callback)
}

func (t *listenerTable) builtinFor(id packet.ID) (builtinListener, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.builtin[id]
	return fn, ok
}

func (t *listenerTable) userFor(id packet.ID) (Callback, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cb, ok := t.user[id]
	return cb, ok
}

// AddListener registers cb for packets with the given ID, replacing any
// existing callback. Callbacks run on the goroutine that calls Iterate.
// IDs handled internally by the connection (handshake, login, keepalive and
// similar) never reach user callbacks.
func (m *Manager) AddListener(id packet.ID, cb Callback) {
	if _, ok := m.listeners.builtinFor(id); ok {
		m.logger("AddListener").WithField("packet_id", id).
			Warn("Listener shadowed by a connection handler and will never fire")
	}
	m.listeners.addUser(id, cb)
}

// RemoveListener drops the callback for id. Packets already queued for it
// are discarded when Iterate reaches them.
func (m *Manager) RemoveListener(id packet.ID) {
	m.listeners.removeUser(id)
}

// RemoveAllListeners drops every user callback.
func (m *Manager) RemoveAllListeners() {
	m.listeners.removeAllUser()
}

// addBuiltinListener registers a connection handler that runs inline on the
// receive goroutine.
func (m *Manager) addBuiltinListener(id packet.ID, fn builtinListener) {
	m.listeners.addBuiltin(id, fn)
}

// Listen registers a typed callback for packets of type P. P's Meta method
// must not read the receiver, since it is called on a nil P to find the ID.
func Listen[P packet.Packet](m *Manager, fn func(P)) {
	var zero P
	m.AddListener(zero.Meta().ID, func(p packet.Packet) {
		if typed, ok := p.(P); ok {
			fn(typed)
		}
	})
}

// Unlisten removes the callback registered for packets of type P.
func Unlisten[P packet.Packet](m *Manager) {
	var zero P
	m.RemoveListener(zero.Meta().ID)
}
