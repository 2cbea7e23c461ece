package router

import (
	"testing"
	"time"

	"agentrelay/internal/protocol"
	"agentrelay/internal/store"
)

func testRouter() *Router {
	return New(Config{
		OfflineQueueMax: 10,
		OfflineTTL:      time.Minute,
		IdleTimeout:     time.Minute,
		PingInterval:    time.Minute,
		MsgMaxBytes:     32768,
	}, &store.Store{}, testLogger())
}

func TestAdmitAgentEvictsPrior(t *testing.T) {
	r := testRouter()
	first := r.AdmitAgent("a1")
	second := r.AdmitAgent("a1")

	select {
	case <-first.Done():
	default:
		t.Fatalf("expected prior handle to be torn down")
	}
	if !r.IsAgentLive("a1") {
		t.Fatalf("expected agent a1 to be live")
	}
	r.RemoveAgent(second)
	if r.IsAgentLive("a1") {
		t.Fatalf("expected agent a1 to be removed")
	}
}

func TestAdmitAgentTakeoverClosesPriorWithConflictAndNoFlap(t *testing.T) {
	r := testRouter()
	client := r.AdmitClient("a1", "d1")
	<-client.Out() // initial offline snapshot

	first := r.AdmitAgent("a1")
	select {
	case <-client.Out(): // online presence from the first admission
	default:
		t.Fatalf("expected a presence broadcast after the first admission")
	}

	second := r.AdmitAgent("a1")

	select {
	case <-first.Done():
	default:
		t.Fatalf("expected prior handle to be torn down")
	}
	if first.CloseCode() != CloseCodeConflict {
		t.Fatalf("expected evicted handle to close with CONFLICT, got %d", first.CloseCode())
	}

	select {
	case frame := <-client.Out():
		t.Fatalf("expected no second presence broadcast on takeover, got %s", frame)
	default:
	}
	r.RemoveAgent(second)
}

func TestCloseClientClosesWithPolicyCode(t *testing.T) {
	r := testRouter()
	client := r.AdmitClient("a1", "d1")
	<-client.Out() // initial offline snapshot

	r.CloseClient("a1", "d1")

	select {
	case <-client.Done():
	default:
		t.Fatalf("expected client handle to be torn down")
	}
	if client.CloseCode() != CloseCodePolicy {
		t.Fatalf("expected revoked client handle to close with POLICY, got %d", client.CloseCode())
	}
}

func TestRemoveAgentIgnoresStaleHandle(t *testing.T) {
	r := testRouter()
	stale := r.AdmitAgent("a1")
	fresh := r.AdmitAgent("a1")

	r.RemoveAgent(stale)
	if !r.IsAgentLive("a1") {
		t.Fatalf("removing a stale handle must not unregister the current one")
	}
	r.RemoveAgent(fresh)
}

func TestAdmitClientReceivesPresenceSnapshot(t *testing.T) {
	r := testRouter()
	r.AdmitAgent("a1")
	client := r.AdmitClient("a1", "d1")

	select {
	case frame := <-client.Out():
		_, decoded, err := protocol.Decode(frame)
		if err != nil {
			t.Fatalf("decode presence snapshot: %v", err)
		}
		presence, ok := decoded.(*protocol.Presence)
		if !ok || !presence.Online {
			t.Fatalf("expected online presence snapshot, got %+v", decoded)
		}
	default:
		t.Fatalf("expected a queued presence snapshot")
	}
}

func TestAdmitAgentBroadcastsPresenceToExistingClients(t *testing.T) {
	r := testRouter()
	client := r.AdmitClient("a1", "d1")
	<-client.Out() // initial offline snapshot

	r.AdmitAgent("a1")

	select {
	case frame := <-client.Out():
		_, decoded, _ := protocol.Decode(frame)
		presence := decoded.(*protocol.Presence)
		if !presence.Online {
			t.Fatalf("expected online presence broadcast")
		}
	default:
		t.Fatalf("expected a presence broadcast after agent admission")
	}
}
