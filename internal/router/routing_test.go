package router

import (
	"testing"
	"time"

	"agentrelay/internal/protocol"
)

func TestRouteChatRequestForwardsToLiveAgent(t *testing.T) {
	r := testRouter()
	agent := r.AdmitAgent("a1")
	client := r.AdmitClient("a1", "d1")
	<-client.Out() // presence snapshot

	req := protocol.ChatRequest{Type: protocol.TypeChatRequest, RequestID: "r1", AgentID: "a1", Text: "hi"}
	if apiErr := r.RouteChatRequest(client, req, time.Now()); apiErr != nil {
		t.Fatalf("RouteChatRequest: %v", apiErr)
	}

	select {
	case frame := <-agent.Out():
		_, decoded, err := protocol.Decode(frame)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		got := decoded.(*protocol.ChatRequest)
		if got.RequestID != "r1" || got.Text != "hi" {
			t.Fatalf("unexpected forwarded request: %+v", got)
		}
	default:
		t.Fatalf("expected the agent to receive the chat request")
	}

	select {
	case frame := <-client.Out():
		_, decoded, _ := protocol.Decode(frame)
		if _, ok := decoded.(*protocol.MessageSent); !ok {
			t.Fatalf("expected message_sent ack, got %T", decoded)
		}
	default:
		t.Fatalf("expected the sender to receive a message_sent ack")
	}
}

func TestRouteChatRequestRejectsAgentMismatch(t *testing.T) {
	r := testRouter()
	client := r.AdmitClient("a1", "d1")
	<-client.Out()

	req := protocol.ChatRequest{Type: protocol.TypeChatRequest, RequestID: "r1", AgentID: "other"}
	apiErr := r.RouteChatRequest(client, req, time.Now())
	if apiErr == nil {
		t.Fatalf("expected an error for mismatched agent_id")
	}
}

func TestRouteChatRequestQueuesWhenAgentOffline(t *testing.T) {
	r := testRouter()
	client := r.AdmitClient("a1", "d1")
	<-client.Out()

	req := protocol.ChatRequest{Type: protocol.TypeChatRequest, RequestID: "r1", AgentID: "a1", Text: "hi"}
	if apiErr := r.RouteChatRequest(client, req, time.Now()); apiErr != nil {
		t.Fatalf("RouteChatRequest: %v", apiErr)
	}

	select {
	case frame := <-client.Out():
		_, decoded, _ := protocol.Decode(frame)
		if _, ok := decoded.(*protocol.MessageSent); !ok {
			t.Fatalf("expected message_sent ack even while the agent is offline")
		}
	default:
		t.Fatalf("expected a message_sent ack")
	}

	agent := r.AdmitAgent("a1")
	select {
	case frame := <-agent.Out():
		_, decoded, _ := protocol.Decode(frame)
		got, ok := decoded.(*protocol.ChatRequest)
		if !ok || got.RequestID != "r1" {
			t.Fatalf("expected the queued request to be drained on admission, got %+v", decoded)
		}
	default:
		t.Fatalf("expected the queued request to be delivered once the agent comes online")
	}
}

func TestRouteChatRequestDisplacesOldestWhenQueueFull(t *testing.T) {
	r := New(Config{OfflineQueueMax: 2, OfflineTTL: time.Minute, IdleTimeout: time.Minute, PingInterval: time.Minute, MsgMaxBytes: 32768}, nil, testLogger())
	client := r.AdmitClient("a1", "d1")
	<-client.Out()

	for i := 0; i < 4; i++ {
		req := protocol.ChatRequest{Type: protocol.TypeChatRequest, RequestID: string(rune('a' + i)), AgentID: "a1"}
		if apiErr := r.RouteChatRequest(client, req, time.Now()); apiErr != nil {
			t.Fatalf("RouteChatRequest must never error on a full queue: %v", apiErr)
		}
		<-client.Out() // drain the ack
	}

	agent := r.AdmitAgent("a1")
	var got []string
	for i := 0; i < 2; i++ {
		select {
		case frame := <-agent.Out():
			_, decoded, _ := protocol.Decode(frame)
			got = append(got, decoded.(*protocol.ChatRequest).RequestID)
		default:
			t.Fatalf("expected 2 surviving queued entries, got %d", i)
		}
	}
	if got[0] != "c" || got[1] != "d" {
		t.Fatalf("expected the 2 newest entries to survive displacement, got %v", got)
	}
}

func TestRouteChatResponseFansOutAndCanonicalizes(t *testing.T) {
	r := testRouter()
	agent := r.AdmitAgent("a1")
	c1 := r.AdmitClient("a1", "d1")
	<-c1.Out()
	c2 := r.AdmitClient("a1", "d2")
	<-c2.Out()

	resp := protocol.ChatResponse{Type: protocol.TypeChatResponse, RequestID: "r1", AgentID: "a1", Text: "hello"}
	if apiErr := r.RouteChatResponse(agent, resp, time.Now()); apiErr != nil {
		t.Fatalf("RouteChatResponse: %v", apiErr)
	}

	for _, c := range []*ClientHandle{c1, c2} {
		select {
		case frame := <-c.Out():
			_, decoded, _ := protocol.Decode(frame)
			got := decoded.(*protocol.ChatResponse)
			if got.Reply != "hello" || got.Text != "" {
				t.Fatalf("expected canonicalized reply, got %+v", got)
			}
		default:
			t.Fatalf("expected every bound client to receive the response")
		}
	}
}
