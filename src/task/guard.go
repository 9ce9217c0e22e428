package task

import "sync"

// Guard enforces the "at most one Pending task per action" rule. Begin is the
// check-and-set and Finish the release, both under one mutex, so a trigger
// racing the completion of the same action's prior task can never observe a
// half-cleared slot.
type Guard struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[string]uint64 // action -> pending task id
}

func NewGuard() *Guard {
	return &Guard{pending: make(map[string]uint64)}
}

// Begin reserves the pending slot for an action and mints a task id.
// Returns ok=false when a task for that action is already in flight.
func (g *Guard) Begin(action string) (id uint64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.pending[action]; busy {
		return 0, false
	}
	g.nextID++
	g.pending[action] = g.nextID
	return g.nextID, true
}

// Finish releases the slot. The id must match the reservation; a stale
// completion after the slot moved on is a no-op.
func (g *Guard) Finish(action string, id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.pending[action]; ok && cur == id {
		delete(g.pending, action)
	}
}

// Abort is Finish for the dispatch error paths; same semantics, named for
// call-site clarity.
func (g *Guard) Abort(action string, id uint64) { g.Finish(action, id) }

// InFlight reports whether an action currently holds its pending slot.
func (g *Guard) InFlight(action string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.pending[action]
	return busy
}
