// Package signalws provides protobuf-framed WebSocket communication with the
// delivery service.
package signalws

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/gwillem/signal-groups/internal/proto"
)

// Conn wraps a WebSocket connection with protobuf framing.
type Conn struct {
	ws     *websocket.Conn
	nextID atomic.Uint64
	reqMu  sync.Mutex // one outstanding Request at a time
}

// Dial opens a WebSocket connection to the given URL.
// If tlsConf is non-nil, it is used for the TLS handshake.
// Optional HTTP headers are added to the upgrade request.
func Dial(ctx context.Context, url string, tlsConf *tls.Config, headers ...http.Header) (*Conn, error) {
	opts := &websocket.DialOptions{}
	if tlsConf != nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConf,
			},
		}
	}
	if len(headers) > 0 {
		opts.HTTPHeader = headers[0]
	}
	ws, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("signalws: dial: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// ReadMessage reads and decodes a WebSocketMessage from the connection.
func (c *Conn) ReadMessage(ctx context.Context) (*proto.WebSocketMessage, error) {
	_, data, err := c.ws.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("signalws: read: %w", err)
	}
	msg, err := proto.UnmarshalWebSocketMessage(data)
	if err != nil {
		return nil, fmt.Errorf("signalws: unmarshal: %w", err)
	}
	return msg, nil
}

// WriteMessage encodes and sends a WebSocketMessage.
func (c *Conn) WriteMessage(ctx context.Context, msg *proto.WebSocketMessage) error {
	if err := c.ws.Write(ctx, websocket.MessageBinary, msg.Marshal()); err != nil {
		return fmt.Errorf("signalws: write: %w", err)
	}
	return nil
}

// SendResponse sends a WebSocket response message (used for ACKs).
func (c *Conn) SendResponse(ctx context.Context, id uint64, status uint32, message string) error {
	return c.WriteMessage(ctx, &proto.WebSocketMessage{
		Type: proto.WebSocketMessage_RESPONSE,
		Response: &proto.WebSocketResponseMessage{
			Id:      id,
			Status:  status,
			Message: message,
		},
	})
}

// Request sends a request and waits for the response carrying its id.
// Server-initiated requests received in the meantime are acknowledged with 200.
func (c *Conn) Request(ctx context.Context, verb, path string, body []byte, headers ...string) (*proto.WebSocketResponseMessage, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	id := c.nextID.Add(1)
	err := c.WriteMessage(ctx, &proto.WebSocketMessage{
		Type: proto.WebSocketMessage_REQUEST,
		Request: &proto.WebSocketRequestMessage{
			Verb:    verb,
			Path:    path,
			Body:    body,
			Headers: headers,
			Id:      id,
		},
	})
	if err != nil {
		return nil, err
	}

	for {
		msg, err := c.ReadMessage(ctx)
		if err != nil {
			return nil, err
		}
		switch {
		case msg.Type == proto.WebSocketMessage_RESPONSE && msg.Response != nil && msg.Response.Id == id:
			return msg.Response, nil
		case msg.Type == proto.WebSocketMessage_REQUEST && msg.Request != nil:
			if err := c.SendResponse(ctx, msg.Request.Id, 200, "OK"); err != nil {
				return nil, err
			}
		}
	}
}

// Close sends a normal closure frame and then closes the connection.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// CloseNow closes the connection immediately without a close frame.
func (c *Conn) CloseNow() error {
	return c.ws.CloseNow()
}
