package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// pongWait/writeWait/pingPeriod are the gorilla/websocket keepalive
// deadlines every connection endpoint shares, independent of the
// Router's own higher-level application ping.
const (
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connLimiter enforces the 60-messages-per-60-seconds per-connection rate
// bound spec.md requires of both endpoints.
func connLimiter(perWindow int, window time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(perWindow)/window.Seconds()), perWindow)
}

// closeCoder is implemented by the router handles (AgentHandle,
// ClientHandle) so writePump can recover the reason a teardown fired
// without the router package importing gorilla/websocket.
type closeCoder interface {
	CloseCode() int
}

// writePump drains out onto conn until done fires or a write fails; it
// owns the connection's write side exclusively, so the Router never
// writes to a socket directly. handle supplies the close code recorded by
// whichever teardown path fired (takeover, revocation, or a plain close).
func writePump(conn *websocket.Conn, handle closeCoder, out <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			closeWithCode(conn, handle.CloseCode(), "")
			return
		case frame, ok := <-out:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
