// Package proto contains the wire messages exchanged with other participants
// and with the delivery service: the legacy group context carried by group
// control messages, and Signal's WebSocket request/response framing.
//
// Messages are encoded with protowire so the byte layout stays compatible
// with the SignalService.proto and WebSocketResources.proto schemas.
package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// skipField consumes an unknown field so decoders tolerate newer senders.
func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, fmt.Errorf("proto: skip field %d: %w", num, protowire.ParseError(n))
	}
	return n, nil
}

func consumeString(b []byte) (string, int, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeBytes(b []byte) ([]byte, int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return append([]byte(nil), v...), n, nil
}

func consumeVarint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}
