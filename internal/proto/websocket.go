package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// WebSocketMessage_Type distinguishes requests from responses.
type WebSocketMessage_Type int32

const (
	WebSocketMessage_UNKNOWN  WebSocketMessage_Type = 0
	WebSocketMessage_REQUEST  WebSocketMessage_Type = 1
	WebSocketMessage_RESPONSE WebSocketMessage_Type = 2
)

// WebSocketRequestMessage is a request sent over the WebSocket.
type WebSocketRequestMessage struct {
	Verb    string
	Path    string
	Body    []byte
	Headers []string
	Id      uint64
}

// WebSocketResponseMessage acknowledges a request with a status code.
type WebSocketResponseMessage struct {
	Id      uint64
	Status  uint32
	Message string
	Headers []string
	Body    []byte
}

// WebSocketMessage is the envelope of every frame.
type WebSocketMessage struct {
	Type     WebSocketMessage_Type
	Request  *WebSocketRequestMessage
	Response *WebSocketResponseMessage
}

func (r *WebSocketRequestMessage) appendTo(b []byte) []byte {
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, r.Verb)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, r.Path)
	if r.Body != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Body)
	}
	b = protowire.AppendTag(b, 4, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Id)
	for _, h := range r.Headers {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, h)
	}
	return b
}

func (r *WebSocketResponseMessage) appendTo(b []byte) []byte {
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Id)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Status))
	if r.Message != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, r.Message)
	}
	if r.Body != nil {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, r.Body)
	}
	for _, h := range r.Headers {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, h)
	}
	return b
}

// Marshal encodes m.
func (m *WebSocketMessage) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	if m.Request != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Request.appendTo(nil))
	}
	if m.Response != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Response.appendTo(nil))
	}
	return b
}

// UnmarshalWebSocketMessage decodes a frame.
func UnmarshalWebSocketMessage(b []byte) (*WebSocketMessage, error) {
	m := new(WebSocketMessage)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("proto: websocket tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch {
		case num == 1 && typ == protowire.VarintType:
			var v uint64
			v, n, err = consumeVarint(b)
			m.Type = WebSocketMessage_Type(v)
		case num == 2 && typ == protowire.BytesType:
			var raw []byte
			raw, n, err = consumeBytes(b)
			if err == nil {
				m.Request, err = unmarshalRequest(raw)
			}
		case num == 3 && typ == protowire.BytesType:
			var raw []byte
			raw, n, err = consumeBytes(b)
			if err == nil {
				m.Response, err = unmarshalResponse(raw)
			}
		default:
			n, err = skipField(num, typ, b)
		}
		if err != nil {
			return nil, fmt.Errorf("proto: websocket field %d: %w", num, err)
		}
		b = b[n:]
	}
	return m, nil
}

func unmarshalRequest(b []byte) (*WebSocketRequestMessage, error) {
	r := new(WebSocketRequestMessage)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		var err error
		switch {
		case num == 1 && typ == protowire.BytesType:
			r.Verb, n, err = consumeString(b)
		case num == 2 && typ == protowire.BytesType:
			r.Path, n, err = consumeString(b)
		case num == 3 && typ == protowire.BytesType:
			r.Body, n, err = consumeBytes(b)
		case num == 4 && typ == protowire.VarintType:
			r.Id, n, err = consumeVarint(b)
		case num == 5 && typ == protowire.BytesType:
			var h string
			h, n, err = consumeString(b)
			r.Headers = append(r.Headers, h)
		default:
			n, err = skipField(num, typ, b)
		}
		if err != nil {
			return nil, err
		}
		b = b[n:]
	}
	return r, nil
}

func unmarshalResponse(b []byte) (*WebSocketResponseMessage, error) {
	r := new(WebSocketResponseMessage)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		var err error
		switch {
		case num == 1 && typ == protowire.VarintType:
			r.Id, n, err = consumeVarint(b)
		case num == 2 && typ == protowire.VarintType:
			var v uint64
			v, n, err = consumeVarint(b)
			r.Status = uint32(v)
		case num == 3 && typ == protowire.BytesType:
			r.Message, n, err = consumeString(b)
		case num == 4 && typ == protowire.BytesType:
			r.Body, n, err = consumeBytes(b)
		case num == 5 && typ == protowire.BytesType:
			var h string
			h, n, err = consumeString(b)
			r.Headers = append(r.Headers, h)
		default:
			n, err = skipField(num, typ, b)
		}
		if err != nil {
			return nil, err
		}
		b = b[n:]
	}
	return r, nil
}
