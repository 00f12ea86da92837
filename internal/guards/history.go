package guards

import (
	"sync"

	"github.com/stablerotor/rotor/internal/types"
)

// History retains exactly one prior snapshot per pool id for the APR-cliff
// baseline. Replace-on-write, never grows beyond one slot per pool.
type History struct {
	mu   sync.RWMutex
	prev map[types.PoolID]types.PoolSnapshot
}

// NewHistory returns an empty single-slot snapshot store.
func NewHistory() *History {
	return &History{prev: make(map[types.PoolID]types.PoolSnapshot)}
}

// Previous returns the retained snapshot for a pool, if any.
func (h *History) Previous(id types.PoolID) (types.PoolSnapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap, ok := h.prev[id]
	return snap, ok
}

// Record replaces the retained snapshot for the snapshot's pool.
func (h *History) Record(snap types.PoolSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prev[snap.Config.ID] = snap
}
