// Package router is the relay's Router: the live agent/client connection
// registries, chat routing, presence broadcast, and the bounded per-agent
// offline queue.
package router

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"agentrelay/internal/protocol"
	"agentrelay/internal/store"
)

const shardCount = 16

// Config carries every resource bound the Router enforces.
type Config struct {
	OfflineQueueMax int
	OfflineTTL      time.Duration
	IdleTimeout     time.Duration
	PingInterval    time.Duration
	MsgMaxBytes     int
}

type shard struct {
	mu      sync.Mutex
	agents  map[string]*AgentHandle
	clients map[string]map[string]*ClientHandle // agentID -> deviceID -> handle
	queues  map[string]*offlineQueue
}

func newShard() *shard {
	return &shard{
		agents:  make(map[string]*AgentHandle),
		clients: make(map[string]map[string]*ClientHandle),
		queues:  make(map[string]*offlineQueue),
	}
}

// Router owns the in-memory, process-lifetime connection state described
// in spec — recreated empty on every start, never persisted.
type Router struct {
	cfg    Config
	store  *store.Store
	log    *slog.Logger
	shards [shardCount]*shard

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Router; call Start to launch its background sweep.
func New(cfg Config, st *store.Store, log *slog.Logger) *Router {
	r := &Router{cfg: cfg, store: st, log: log, stopCh: make(chan struct{})}
	for i := range r.shards {
		r.shards[i] = newShard()
	}
	return r
}

func (r *Router) shardFor(agentID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(agentID))
	return r.shards[h.Sum32()%shardCount]
}

// Start launches the ping/idle-timeout sweep goroutine; it stops when ctx
// is canceled or Stop is called.
func (r *Router) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.sweepLoop(ctx)
}

// Stop signals the sweep loop to exit and waits for it.
func (r *Router) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Router) sweepLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep(ctx, time.Now())
		}
	}
}

func (r *Router) sweep(ctx context.Context, now time.Time) {
	ping, _ := json.Marshal(protocol.PingPong{Type: protocol.TypePing, TS: protocol.TimestampFromString(now.UTC().Format(time.RFC3339))})

	for _, sh := range r.shards {
		sh.mu.Lock()
		for id, h := range sh.agents {
			if h.idleSince(now) > r.cfg.IdleTimeout {
				h.Close()
				delete(sh.agents, id)
				r.broadcastPresenceLocked(sh, id, false, now)
				continue
			}
			h.Send(ping)
		}
		for agentID, devices := range sh.clients {
			for deviceID, h := range devices {
				if h.idleSince(now) > r.cfg.IdleTimeout {
					h.Close()
					delete(devices, deviceID)
					continue
				}
				h.Send(ping)
			}
			if len(devices) == 0 {
				delete(sh.clients, agentID)
			}
		}
		for agentID, q := range sh.queues {
			q.expire(now)
			if q.isEmpty() {
				delete(sh.queues, agentID)
			}
		}
		sh.mu.Unlock()
	}

	if err := r.store.Cleanup(ctx, now); err != nil {
		r.log.Warn("store cleanup failed", "error", err)
	}
}
