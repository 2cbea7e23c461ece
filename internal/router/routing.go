package router

import (
	"encoding/json"
	"time"

	"agentrelay/internal/apierr"
	"agentrelay/internal/protocol"
)

// RouteChatRequest handles an incoming chat.request from a client bound
// to from. It validates the target, forwards verbatim if the agent is
// live, or queues it otherwise.
func (r *Router) RouteChatRequest(from *ClientHandle, req protocol.ChatRequest, now time.Time) *apierr.Error {
	from.touch(now)

	if req.AgentID != from.AgentID {
		return apierr.New(apierr.Unauthorized, "agent_id does not match bound agent")
	}
	if len(req.Text) > r.cfg.MsgMaxBytes {
		return apierr.New(apierr.MessageTooLarge, "chat.request text exceeds the size limit")
	}

	req.TS = protocol.TimestampFromString(now.UTC().Format(time.RFC3339))
	frame, err := json.Marshal(req)
	if err != nil {
		return apierr.Internal(err)
	}

	sh := r.shardFor(req.AgentID)
	sh.mu.Lock()
	handle, live := sh.agents[req.AgentID]
	sh.mu.Unlock()

	if live {
		handle.Send(frame)
	} else {
		r.enqueueOffline(req.AgentID, frame, now)
	}

	ack, _ := json.Marshal(protocol.MessageSent{Type: protocol.TypeMessageSent, RequestID: req.RequestID})
	from.Send(ack)
	return nil
}

func (r *Router) enqueueOffline(agentID string, frame []byte, now time.Time) {
	sh := r.shardFor(agentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	q, ok := sh.queues[agentID]
	if !ok {
		q = newOfflineQueue(r.cfg.OfflineQueueMax, r.cfg.OfflineTTL)
		sh.queues[agentID] = q
	}
	q.expire(now)
	q.push(frame, now)
}

// drainQueue delivers every live entry of agentID's offline queue onto
// handle, in insertion order, discarding entries that fail delivery three
// times or that have aged out.
func (r *Router) drainQueue(agentID string, handle *AgentHandle, now time.Time) {
	sh := r.shardFor(agentID)

	sh.mu.Lock()
	q, ok := sh.queues[agentID]
	if !ok {
		sh.mu.Unlock()
		return
	}
	entries := q.drain(now)
	delete(sh.queues, agentID)
	sh.mu.Unlock()

	for _, e := range entries {
		for e.attempts < queueMaxAttempts {
			e.attempts++
			if handle.Send(e.frame) {
				break
			}
		}
	}
}

// RouteChatResponse fans out an agent's chat.response to every live
// client bound to its agent_id, canonicalizing reply|text|message to
// reply on egress. Responses are never queued for offline clients.
func (r *Router) RouteChatResponse(from *AgentHandle, resp protocol.ChatResponse, now time.Time) *apierr.Error {
	from.touch(now)
	resp.Canonicalize()
	resp.AgentID = from.AgentID
	resp.TS = protocol.TimestampFromString(now.UTC().Format(time.RFC3339))

	frame, err := json.Marshal(resp)
	if err != nil {
		return apierr.Internal(err)
	}

	sh := r.shardFor(from.AgentID)
	sh.mu.Lock()
	devices := sh.clients[from.AgentID]
	targets := make([]*ClientHandle, 0, len(devices))
	for _, h := range devices {
		targets = append(targets, h)
	}
	sh.mu.Unlock()

	for _, h := range targets {
		h.Send(frame)
	}
	return nil
}
