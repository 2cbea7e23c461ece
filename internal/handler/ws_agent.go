package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"agentrelay/internal/apierr"
	"agentrelay/internal/auth"
	"agentrelay/internal/protocol"
)

// AgentWSHandler implements the agent WebSocket endpoint from spec.md §4.6.
type AgentWSHandler struct {
	Deps
}

func NewAgentWSHandler(d Deps) *AgentWSHandler { return &AgentWSHandler{Deps: d} }

// Serve authenticates the agent, admits it into the Router, and runs its
// reader/writer loop until the socket closes.
func (h *AgentWSHandler) Serve(c *gin.Context) {
	agentID := c.Query("agent_id")
	secret := bearerSecret(c)
	if secret == "" {
		secret = c.Query("secret")
	}
	if agentID == "" || secret == "" {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "agent_id and secret are required"))
		return
	}

	agent, err := h.Store.FindAgentByID(c.Request.Context(), agentID)
	if err != nil {
		apierr.WriteHTTP(c, apierr.Internal(err))
		return
	}
	if agent == nil || !auth.VerifyAgentSecret(agent.SecretHash, secret, h.Cfg.AllowLegacyGlobalAgentSecret, h.Cfg.LegacyGlobalAgentSecret) {
		apierr.WriteHTTP(c, apierr.New(apierr.Unauthorized, "invalid agent credentials"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("agent websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(int64(h.Cfg.MsgMaxBytes) + 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	handle := h.Router.AdmitAgent(agentID)
	h.touchLastSeen(agentID)
	defer func() {
		h.Router.RemoveAgent(handle)
		h.touchLastSeen(agentID)
	}()

	go writePump(conn, handle, handle.Out(), handle.Done())

	limiter := connLimiter(60, 60*time.Second)

	firstFrame := true
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(raw) > h.Cfg.MsgMaxBytes {
			h.sendError(handle, "", apierr.MessageTooLarge, "frame exceeds size limit")
			return
		}
		if !limiter.Allow() {
			h.sendError(handle, "", apierr.RateLimited, "message rate exceeded")
			continue
		}

		handle.Touch(time.Now())

		frameType, frame, err := protocol.Decode(raw)
		if err != nil {
			h.sendError(handle, "", apierr.InvalidMessage, "could not decode frame")
			return
		}

		if firstFrame {
			firstFrame = false
			hello, ok := frame.(*protocol.Hello)
			if !ok || hello.Role != "agent" {
				h.sendError(handle, "", apierr.InvalidMessage, "first frame must be hello{role=agent}")
				return
			}
			continue
		}

		switch frameType {
		case protocol.TypeChatResponse:
			resp := frame.(*protocol.ChatResponse)
			if apiErr := h.Router.RouteChatResponse(handle, *resp, time.Now()); apiErr != nil {
				h.sendError(handle, resp.RequestID, apiErr.Code, apiErr.Message)
			}
		case protocol.TypePresence:
			// Agents may re-announce presence; the Router is the source
			// of truth so this is accepted and otherwise ignored.
		case protocol.TypePing:
			pong, _ := json.Marshal(protocol.PingPong{Type: protocol.TypePong})
			handle.Send(pong)
		case protocol.TypePong:
		default:
			h.sendError(handle, "", apierr.InvalidMessage, "unexpected frame type for agent endpoint")
			return
		}
	}
}

func (h *AgentWSHandler) sendError(handle interface{ Send([]byte) bool }, requestID string, code apierr.Code, message string) {
	frame, _ := json.Marshal(apierr.Frame(requestID, apierr.New(code, message)))
	handle.Send(frame)
}

// touchLastSeen refreshes the agent's last_seen_at column on connect and
// disconnect, per spec.md §4.1's "mutated on... last-seen on
// connect/disconnect."
func (h *AgentWSHandler) touchLastSeen(agentID string) {
	if err := h.Store.TouchAgentLastSeen(context.Background(), agentID, time.Now()); err != nil {
		h.Log.Warn("touch agent last_seen_at failed", "agent_id", agentID, "error", err)
	}
}
