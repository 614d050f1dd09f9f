package proto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// GroupContext_Type is the kind of group control message.
type GroupContext_Type int32

const (
	GroupContext_UNKNOWN      GroupContext_Type = 0
	GroupContext_UPDATE       GroupContext_Type = 1
	GroupContext_DELIVER      GroupContext_Type = 2
	GroupContext_QUIT         GroupContext_Type = 3
	GroupContext_REQUEST_INFO GroupContext_Type = 4
)

var groupContextTypeNames = map[GroupContext_Type]string{
	GroupContext_UNKNOWN:      "UNKNOWN",
	GroupContext_UPDATE:       "UPDATE",
	GroupContext_DELIVER:      "DELIVER",
	GroupContext_QUIT:         "QUIT",
	GroupContext_REQUEST_INFO: "REQUEST_INFO",
}

func (t GroupContext_Type) String() string {
	if s, ok := groupContextTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("GroupContext_Type(%d)", int32(t))
}

// Field numbers of GroupContext.
const (
	groupContextID      protowire.Number = 1
	groupContextType    protowire.Number = 2
	groupContextName    protowire.Number = 3
	groupContextMembers protowire.Number = 4
	groupContextAdmins  protowire.Number = 6
	groupContextOwner   protowire.Number = 7
)

// GroupContext announces the full state of a legacy group.
// Name and Owner are optional: nil means the field is absent on the wire,
// a pointer to "" is serialized as an empty string.
type GroupContext struct {
	Id      []byte
	Type    *GroupContext_Type
	Name    *string
	Members []string
	Admins  []string
	Owner   *string
}

// GetType returns the message type, UNKNOWN when absent.
func (g *GroupContext) GetType() GroupContext_Type {
	if g == nil || g.Type == nil {
		return GroupContext_UNKNOWN
	}
	return *g.Type
}

// GetName returns the group name, "" when absent.
func (g *GroupContext) GetName() string {
	if g == nil || g.Name == nil {
		return ""
	}
	return *g.Name
}

// GetOwner returns the owner identifier, "" when absent.
func (g *GroupContext) GetOwner() string {
	if g == nil || g.Owner == nil {
		return ""
	}
	return *g.Owner
}

// Enum returns a pointer to t, for populating optional fields.
func (t GroupContext_Type) Enum() *GroupContext_Type { return &t }

// Marshal encodes g. Repeated fields are written in slice order.
func (g *GroupContext) Marshal() []byte {
	var b []byte
	if g.Id != nil {
		b = protowire.AppendTag(b, groupContextID, protowire.BytesType)
		b = protowire.AppendBytes(b, g.Id)
	}
	if g.Type != nil {
		b = protowire.AppendTag(b, groupContextType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*g.Type))
	}
	if g.Name != nil {
		b = protowire.AppendTag(b, groupContextName, protowire.BytesType)
		b = protowire.AppendString(b, *g.Name)
	}
	for _, m := range g.Members {
		b = protowire.AppendTag(b, groupContextMembers, protowire.BytesType)
		b = protowire.AppendString(b, m)
	}
	for _, a := range g.Admins {
		b = protowire.AppendTag(b, groupContextAdmins, protowire.BytesType)
		b = protowire.AppendString(b, a)
	}
	if g.Owner != nil {
		b = protowire.AppendTag(b, groupContextOwner, protowire.BytesType)
		b = protowire.AppendString(b, *g.Owner)
	}
	return b
}

// UnmarshalGroupContext decodes a GroupContext, skipping unknown fields.
func UnmarshalGroupContext(b []byte) (*GroupContext, error) {
	g := new(GroupContext)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("proto: group context tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		var err error
		switch {
		case num == groupContextID && typ == protowire.BytesType:
			g.Id, n, err = consumeBytes(b)
		case num == groupContextType && typ == protowire.VarintType:
			var v uint64
			v, n, err = consumeVarint(b)
			g.Type = GroupContext_Type(v).Enum()
		case num == groupContextName && typ == protowire.BytesType:
			var s string
			s, n, err = consumeString(b)
			g.Name = &s
		case num == groupContextMembers && typ == protowire.BytesType:
			var s string
			s, n, err = consumeString(b)
			g.Members = append(g.Members, s)
		case num == groupContextAdmins && typ == protowire.BytesType:
			var s string
			s, n, err = consumeString(b)
			g.Admins = append(g.Admins, s)
		case num == groupContextOwner && typ == protowire.BytesType:
			var s string
			s, n, err = consumeString(b)
			g.Owner = &s
		default:
			n, err = skipField(num, typ, b)
		}
		if err != nil {
			return nil, fmt.Errorf("proto: group context field %d: %w", num, err)
		}
		b = b[n:]
	}
	return g, nil
}
