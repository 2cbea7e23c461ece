package router

import (
	"encoding/json"
	"time"

	"agentrelay/internal/protocol"
)

// CloseCodeConflict is the WebSocket close code used when a new agent
// connection evicts a prior one for the same agent_id.
const CloseCodeConflict = 4409

// CloseCodePolicy is used when the relay closes a socket for policy
// reasons (e.g. device revocation), not a protocol violation.
const CloseCodePolicy = 4403

// AdmitAgent installs handle as the live connection for agentID, evicting
// and closing any prior handle first, then broadcasting presence(online)
// and draining the agent's offline queue onto the new handle. A takeover
// re-admission (a prior handle was already live) evicts with CONFLICT but
// suppresses the presence broadcast: clients already observed online=true
// for this agent_id and must see no flap.
func (r *Router) AdmitAgent(agentID string) *AgentHandle {
	sh := r.shardFor(agentID)
	now := time.Now()

	sh.mu.Lock()
	prev, hadPrior := sh.agents[agentID]
	if hadPrior {
		prev.CloseWithCode(CloseCodeConflict)
	}
	handle := newAgentHandle(agentID)
	sh.agents[agentID] = handle
	sh.mu.Unlock()

	if !hadPrior {
		r.broadcastPresence(agentID, true, now)
	}
	r.drainQueue(agentID, handle, now)
	return handle
}

// RemoveAgent unregisters handle if it is still the current live handle
// for its agent_id (a handle evicted by AdmitAgent must not un-register
// the handle that replaced it), then broadcasts presence(offline).
func (r *Router) RemoveAgent(handle *AgentHandle) {
	sh := r.shardFor(handle.AgentID)

	sh.mu.Lock()
	current, ok := sh.agents[handle.AgentID]
	stillCurrent := ok && current == handle
	if stillCurrent {
		delete(sh.agents, handle.AgentID)
	}
	sh.mu.Unlock()

	if stillCurrent {
		r.broadcastPresence(handle.AgentID, false, time.Now())
	}
}

// AdmitClient installs a ClientHandle for (agentID, deviceID), evicting
// any prior handle under the same key, then sends a presence snapshot for
// the bound agent.
func (r *Router) AdmitClient(agentID, deviceID string) *ClientHandle {
	sh := r.shardFor(agentID)

	sh.mu.Lock()
	devices, ok := sh.clients[agentID]
	if !ok {
		devices = make(map[string]*ClientHandle)
		sh.clients[agentID] = devices
	}
	if prev, ok := devices[deviceID]; ok {
		prev.Close()
	}
	handle := newClientHandle(agentID, deviceID)
	devices[deviceID] = handle
	_, online := sh.agents[agentID]
	sh.mu.Unlock()

	frame, _ := json.Marshal(protocol.Presence{
		Type:    protocol.TypePresence,
		AgentID: agentID,
		Online:  online,
		TS:      protocol.TimestampFromString(time.Now().UTC().Format(time.RFC3339)),
	})
	handle.Send(frame)
	return handle
}

// RemoveClient unregisters handle if it is still current.
func (r *Router) RemoveClient(handle *ClientHandle) {
	sh := r.shardFor(handle.AgentID)

	sh.mu.Lock()
	defer sh.mu.Unlock()
	devices, ok := sh.clients[handle.AgentID]
	if !ok {
		return
	}
	if current, ok := devices[handle.DeviceID]; ok && current == handle {
		delete(devices, handle.DeviceID)
	}
	if len(devices) == 0 {
		delete(sh.clients, handle.AgentID)
	}
}

// broadcastPresence sends a presence frame to every client bound to
// agentID.
func (r *Router) broadcastPresence(agentID string, online bool, now time.Time) {
	sh := r.shardFor(agentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	r.broadcastPresenceLocked(sh, agentID, online, now)
}

// broadcastPresenceLocked assumes sh.mu is already held by the caller.
func (r *Router) broadcastPresenceLocked(sh *shard, agentID string, online bool, now time.Time) {
	devices, ok := sh.clients[agentID]
	if !ok {
		return
	}
	frame, _ := json.Marshal(protocol.Presence{
		Type:    protocol.TypePresence,
		AgentID: agentID,
		Online:  online,
		TS:      protocol.TimestampFromString(now.UTC().Format(time.RFC3339)),
	})
	for _, h := range devices {
		h.Send(frame)
	}
}

// CloseClient closes the live client handle for (agentID, deviceID), if
// any, used by admin-triggered device revocation.
func (r *Router) CloseClient(agentID, deviceID string) {
	sh := r.shardFor(agentID)

	sh.mu.Lock()
	devices, ok := sh.clients[agentID]
	if !ok {
		sh.mu.Unlock()
		return
	}
	handle, ok := devices[deviceID]
	if ok {
		delete(devices, deviceID)
	}
	sh.mu.Unlock()

	if ok {
		handle.CloseWithCode(CloseCodePolicy)
	}
}

// IsAgentLive reports whether agentID currently has a live handle.
func (r *Router) IsAgentLive(agentID string) bool {
	sh := r.shardFor(agentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	_, ok := sh.agents[agentID]
	return ok
}
