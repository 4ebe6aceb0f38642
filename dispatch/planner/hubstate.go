package planner

import "sync"

// HubState tracks which drivers have confirmed arrival back at the hub.
// Process-local and lost on restart; a driver re-confirms, or the state
// re-derives from the next completion.
type HubState struct {
	mu    sync.Mutex
	atHub map[int]bool
}

func NewHubState() *HubState {
	return &HubState{atHub: make(map[int]bool)}
}

func (h *HubState) AtHub(driverID int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.atHub[driverID]
}

func (h *HubState) Set(driverID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.atHub[driverID] = true
}

func (h *HubState) Clear(driverID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.atHub, driverID)
}
