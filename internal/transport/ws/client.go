package ws

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// readPump reads envelopes off the socket and hands them to dispatch.
// It exits when the socket closes or a read fails, triggering cleanup.
func (h *Handler) readPump(c *Client, sock *websocket.Conn) {
	defer func() {
		h.cleanup(c)
		sock.Close()
	}()

	sock.SetReadLimit(maxMessageSize)
	sock.SetReadDeadline(time.Now().Add(pongWait))
	sock.SetPongHandler(func(string) error {
		sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("unexpected socket close", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.sendError(c, "invalid message format")
			continue
		}
		h.dispatch(c, msg)
	}
}

// writePump drains the client's send queue onto the socket. A closed queue
// means the hub dropped the connection; the pump emits a close frame and
// returns, which also unblocks readPump.
func (h *Handler) writePump(c *Client, sock *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sock.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sock.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
