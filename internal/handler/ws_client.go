package handler

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"agentrelay/internal/apierr"
	"agentrelay/internal/middleware"
	"agentrelay/internal/protocol"
)

// ClientWSHandler implements the client WebSocket endpoint from
// spec.md §4.6. It is mounted behind middleware.RequireAccessToken, so by
// the time Serve runs the device's bound agent_id is already known.
type ClientWSHandler struct {
	Deps
}

func NewClientWSHandler(d Deps) *ClientWSHandler { return &ClientWSHandler{Deps: d} }

func (h *ClientWSHandler) Serve(c *gin.Context) {
	agentID := middleware.AgentIDFromContext(c)
	deviceID := middleware.DeviceIDFromContext(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("client websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(int64(h.Cfg.MsgMaxBytes) + 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	handle := h.Router.AdmitClient(agentID, deviceID)
	defer h.Router.RemoveClient(handle)

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
			if !ok || hello.Role != "client" {
				h.sendError(handle, "", apierr.InvalidMessage, "first frame must be hello{role=client}")
				return
			}
			continue
		}

		switch frameType {
		case protocol.TypeChatRequest:
			req := frame.(*protocol.ChatRequest)
			if apiErr := h.Router.RouteChatRequest(handle, *req, time.Now()); apiErr != nil {
				h.sendError(handle, req.RequestID, apiErr.Code, apiErr.Message)
			}
		case protocol.TypePresenceReq:
			online := h.Router.IsAgentLive(agentID)
			presence, _ := json.Marshal(protocol.Presence{
				Type:    protocol.TypePresence,
				AgentID: agentID,
				Online:  online,
				TS:      protocol.TimestampFromString(time.Now().UTC().Format(time.RFC3339)),
			})
			handle.Send(presence)
		case protocol.TypePing:
			pong, _ := json.Marshal(protocol.PingPong{Type: protocol.TypePong})
			handle.Send(pong)
		case protocol.TypePong:
		default:
			h.sendError(handle, "", apierr.InvalidMessage, "unexpected frame type for client endpoint")
			return
		}
	}
}

func (h *ClientWSHandler) sendError(handle interface{ Send([]byte) bool }, requestID string, code apierr.Code, message string) {
	frame, _ := json.Marshal(apierr.Frame(requestID, apierr.New(code, message)))
	handle.Send(frame)
}
