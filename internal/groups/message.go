package groups

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/gwillem/signal-groups/internal/address"
	"github.com/gwillem/signal-groups/internal/groupid"
	"github.com/gwillem/signal-groups/internal/proto"
)

// TransferProgress is the upload state of an attachment.
type TransferProgress int

const (
	TransferDone    TransferProgress = 0
	TransferStarted TransferProgress = 1
	TransferPending TransferProgress = 2
)

// defaultAvatarType is used when the avatar bytes are not a recognizable image.
const defaultAvatarType = "image/png"

// Attachment references staged content sent alongside a message.
type Attachment struct {
	URI         string // single-use blob reference
	ContentType string
	Size        int64
	Progress    TransferProgress
}

// OutgoingGroupMessage is a group control message ready for dispatch.
type OutgoingGroupMessage struct {
	Group     address.Address
	Context   *proto.GroupContext
	Avatar    *Attachment // nil when the group has no avatar
	SentAt    time.Time
	ExpiresIn time.Duration
}

// Result identifies the conversation a group action was applied to.
type Result struct {
	Group    address.Address
	ThreadID int64
}

// groupUpdate is the full state announced by a control message.
type groupUpdate struct {
	group   address.Address
	members []address.Address
	admins  []address.Address
	owner   address.Address
	title   *string
	avatar  []byte
}

// buildGroupContext encodes u as an UPDATE group context. Members and admins
// are sorted by canonical form so the payload is reproducible.
func buildGroupContext(u groupUpdate) (*proto.GroupContext, error) {
	raw, err := groupid.Decode(u.group.String())
	if err != nil {
		return nil, err
	}
	gc := &proto.GroupContext{
		Id:      raw,
		Type:    proto.GroupContext_UPDATE.Enum(),
		Members: address.Strings(address.Set(u.members)),
		Admins:  address.Strings(address.Set(u.admins)),
	}
	if u.title != nil {
		name := *u.title
		gc.Name = &name
	}
	if !u.owner.IsZero() {
		owner := u.owner.String()
		gc.Owner = &owner
	}
	return gc, nil
}

func avatarContentType(avatar []byte) string {
	mt := mimetype.Detect(avatar).String()
	if strings.HasPrefix(mt, "image/") {
		return mt
	}
	return defaultAvatarType
}

// sendGroupUpdate hands an UPDATE for u to the dispatcher. A nil recipients
// list lets the dispatcher deliver to the current members.
func (e *Engine) sendGroupUpdate(ctx context.Context, u groupUpdate, recipients []address.Address) (Result, error) {
	gc, err := buildGroupContext(u)
	if err != nil {
		// Group ids are produced by this package; an undecodable one is a bug.
		panic(fmt.Sprintf("groups: build update for %s: %v", u.group, err))
	}

	msg := &OutgoingGroupMessage{
		Group:   u.group,
		Context: gc,
		SentAt:  e.now(),
	}
	if u.avatar != nil {
		msg.Avatar = &Attachment{
			URI:         e.blobs.Put(u.avatar),
			ContentType: avatarContentType(u.avatar),
			Size:        int64(len(u.avatar)),
			Progress:    TransferDone,
		}
	}

	logf(e.logger, "group update: id=%s members=%d admins=%d override=%d avatar=%v",
		u.group, len(gc.Members), len(gc.Admins), len(recipients), msg.Avatar != nil)

	threadID, err := e.dispatcher.Send(ctx, msg, recipients)
	if err != nil {
		if msg.Avatar != nil {
			e.blobs.Drop(msg.Avatar.URI)
		}
		e.metrics.dispatched.WithLabelValues("error").Inc()
		return Result{Group: u.group}, &DispatchError{GroupID: u.group.String(), Err: err}
	}
	e.metrics.dispatched.WithLabelValues("ok").Inc()
	return Result{Group: u.group, ThreadID: threadID}, nil
}
