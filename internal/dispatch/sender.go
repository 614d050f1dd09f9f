// Package dispatch delivers group control messages.
//
// Every message is logged in the local outbox of the group's thread together
// with its avatar part. When a delivery connection is configured the encoded
// group context is also pushed to the service, and a non-2xx response fails
// the send.
package dispatch

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/gwillem/signal-groups/internal/address"
	"github.com/gwillem/signal-groups/internal/groups"
	"github.com/gwillem/signal-groups/internal/proto"
	"github.com/gwillem/signal-groups/internal/store"
)

// Outbox is the local message log.
type Outbox interface {
	ThreadIDFor(recipient address.Address) (int64, error)
	InsertOutgoing(msg *store.OutgoingMessage, avatar *store.MediaRecord) (int64, error)
}

// BlobTaker resolves single-use avatar references.
type BlobTaker interface {
	Take(uri string) ([]byte, error)
}

// Transport pushes a request to the delivery service.
type Transport interface {
	Request(ctx context.Context, verb, path string, body []byte, headers ...string) (*proto.WebSocketResponseMessage, error)
}

// Sender implements groups.Dispatcher.
type Sender struct {
	outbox    Outbox
	blobs     BlobTaker
	transport Transport // nil keeps messages local
	logger    *log.Logger
}

var _ groups.Dispatcher = (*Sender)(nil)

// NewSender creates a Sender. transport and logger may be nil.
func NewSender(outbox Outbox, blobs BlobTaker, transport Transport, logger *log.Logger) *Sender {
	return &Sender{outbox: outbox, blobs: blobs, transport: transport, logger: logger}
}

// logf logs a message if the logger is non-nil.
func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// Send logs msg in the group's thread and pushes it if a transport is set.
// It returns the thread id.
func (s *Sender) Send(ctx context.Context, msg *groups.OutgoingGroupMessage, recipients []address.Address) (int64, error) {
	if msg == nil || msg.Context == nil {
		return 0, fmt.Errorf("dispatch: empty message")
	}
	// The avatar is taken first so a failure below never strands it.
	var avatar *store.MediaRecord
	if msg.Avatar != nil {
		data, err := s.blobs.Take(msg.Avatar.URI)
		if err != nil {
			return 0, fmt.Errorf("dispatch: avatar: %w", err)
		}
		avatar = &store.MediaRecord{
			ContentType: msg.Avatar.ContentType,
			Size:        msg.Avatar.Size,
			Data:        data,
			CreatedAt:   msg.SentAt,
		}
	}

	threadID, err := s.outbox.ThreadIDFor(msg.Group)
	if err != nil {
		return 0, fmt.Errorf("dispatch: thread: %w", err)
	}

	body := msg.Context.Marshal()
	id, err := s.outbox.InsertOutgoing(&store.OutgoingMessage{
		ThreadID:   threadID,
		GroupID:    msg.Group.String(),
		Body:       body,
		Recipients: recipients,
		SentAt:     msg.SentAt,
		ExpiresIn:  msg.ExpiresIn,
	}, avatar)
	if err != nil {
		return 0, fmt.Errorf("dispatch: log message: %w", err)
	}
	logf(s.logger, "dispatch: logged message=%d thread=%d group=%s", id, threadID, msg.Group)

	if s.transport != nil {
		if err := s.push(ctx, msg, body, recipients); err != nil {
			return 0, err
		}
	}
	return threadID, nil
}

func (s *Sender) push(ctx context.Context, msg *groups.OutgoingGroupMessage, body []byte, recipients []address.Address) error {
	path := "/v1/groups/" + hex.EncodeToString(msg.Context.Id)
	headers := []string{"content-type:application/x-protobuf"}
	if recipients != nil {
		headers = append(headers, "x-recipients:"+strings.Join(address.Strings(recipients), ","))
	}
	if msg.Avatar != nil {
		headers = append(headers, "x-avatar-type:"+msg.Avatar.ContentType)
	}

	resp, err := s.transport.Request(ctx, "PUT", path, body, headers...)
	if err != nil {
		return fmt.Errorf("dispatch: push: %w", err)
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return fmt.Errorf("dispatch: push %s: status %d %s", path, resp.Status, resp.Message)
	}
	logf(s.logger, "dispatch: pushed %s status=%d", path, resp.Status)
	return nil
}
