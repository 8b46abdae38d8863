package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// graphql-transport-ws message types (spec §6).
const (
	msgConnectionInit = "connection_init"
	msgConnectionAck  = "connection_ack"
	msgPing           = "ping"
	msgPong           = "pong"
	msgSubscribe      = "subscribe"
	msgNext           = "next"
	msgError          = "error"
	msgComplete       = "complete"
)

// wsMessage is one graphql-transport-ws protocol envelope, mirroring
// thunder's graphql/server.go inEnvelope/outEnvelope split but using the
// protocol's own field names instead of thunder's bespoke id/type/message
// shape.
type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	Subprotocols:    []string{"graphql-transport-ws"},
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func isWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// wsConn holds one client connection's live subscriptions; graphql-ws
// allows several concurrent operations multiplexed over one socket,
// identified by id, the same shape thunder's conn.subscriptions tracks.
type wsConn struct {
	gw     *Gateway
	socket *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func (g *Gateway) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log().Error("websocket upgrade failed", "err", err)
		return
	}
	defer socket.Close()

	c := &wsConn{gw: g, socket: socket, cancels: map[string]context.CancelFunc{}}
	defer c.closeAll()

	for {
		var msg wsMessage
		if err := c.socket.ReadJSON(&msg); err != nil {
			if !isCloseError(err) {
				c.gw.log().Error("websocket read failed", "err", err)
			}
			return
		}
		c.handle(r.Context(), &msg)
	}
}

func (c *wsConn) handle(ctx context.Context, msg *wsMessage) {
	switch msg.Type {
	case msgConnectionInit:
		c.write(wsMessage{Type: msgConnectionAck})
	case msgPing:
		c.write(wsMessage{Type: msgPong})
	case msgSubscribe:
		c.handleSubscribe(ctx, msg)
	case msgComplete:
		c.cancel(msg.ID)
	default:
		c.write(wsMessage{ID: msg.ID, Type: msgError, Payload: marshalOrNil(jsonErrors("unknown message type"))})
	}
}

func (c *wsConn) handleSubscribe(parent context.Context, msg *wsMessage) {
	var payload subscribePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		c.write(wsMessage{ID: msg.ID, Type: msgError, Payload: marshalOrNil(jsonErrors(err.Error()))})
		return
	}

	c.mu.Lock()
	if _, exists := c.cancels[msg.ID]; exists {
		c.mu.Unlock()
		c.write(wsMessage{ID: msg.ID, Type: msgError, Payload: marshalOrNil(jsonErrors("subscriber already exists for id"))})
		return
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancels[msg.ID] = cancel
	c.mu.Unlock()

	go func() {
		defer c.cancel(msg.ID)

		body := requestBody{Query: payload.Query, Variables: payload.Variables, OperationName: payload.OperationName}
		env, _, err := c.gw.execute(ctx, body)
		if err != nil {
			c.write(wsMessage{ID: msg.ID, Type: msgError, Payload: marshalOrNil(jsonErrors(err.Error()))})
			return
		}
		c.write(wsMessage{ID: msg.ID, Type: msgNext, Payload: marshalOrNil(env)})
		c.write(wsMessage{ID: msg.ID, Type: msgComplete})
	}()
}

func (c *wsConn) cancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.cancels[id]; ok {
		cancel()
		delete(c.cancels, id)
	}
}

func (c *wsConn) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cancel := range c.cancels {
		cancel()
		delete(c.cancels, id)
	}
}

func (c *wsConn) write(msg wsMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.socket.WriteJSON(msg); err != nil {
		if !isCloseError(err) {
			c.gw.log().Error("websocket write failed", "err", err)
		}
	}
}

func isCloseError(err error) bool {
	_, ok := err.(*websocket.CloseError)
	return ok || err == websocket.ErrCloseSent
}

func jsonErrors(message string) []map[string]string {
	return []map[string]string{{"message": message}}
}

func marshalOrNil(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
