// Package groups computes group state transitions and propagates them.
//
// Every create or update persists the new state first, then (for secure
// groups) emits one UPDATE control message carrying the full member list,
// admin list, title, owner and avatar, so that other participants converge.
// Legacy MMS groups are local-only and never dispatch.
//
// The engine holds no mutable state of its own. Updates are read-modify-write
// against the store: callers must serialize create/update calls for the same
// group id.
package groups

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/gwillem/signal-groups/internal/address"
	"github.com/gwillem/signal-groups/internal/groupid"
	"github.com/gwillem/signal-groups/internal/store"
)

// Store is the group persistence the engine needs.
type Store interface {
	AllocateGroupID() ([]byte, error)
	CreateGroup(g *store.Group) error
	GetGroup(groupID string) (*store.Group, error)
	UpdateGroupAvatar(groupID string, avatar []byte) error
	ReplaceGroupState(groupID string, members, admins []address.Address, title *string, avatar []byte) error
	SetProfileSharing(recipient address.Address, enabled bool) error
	ThreadIDFor(recipient address.Address) (int64, error)
}

// Dispatcher delivers control messages. A nil recipients list means the
// current members of the group.
type Dispatcher interface {
	Send(ctx context.Context, msg *OutgoingGroupMessage, recipients []address.Address) (int64, error)
}

// Stager stages avatar bytes behind a single-use reference. Drop releases a
// reference the dispatcher did not consume; it is a no-op otherwise.
type Stager interface {
	Put(data []byte) string
	Drop(uri string)
}

// Config holds the collaborators of an Engine.
type Config struct {
	Store      Store
	Dispatcher Dispatcher
	Blobs      Stager
	Local      address.Address       // local identity, always a member
	Logger     *log.Logger           // nil disables logging
	Registerer prometheus.Registerer // nil skips metric registration
	Now        func() time.Time      // defaults to time.Now
}

// Engine creates and updates groups.
type Engine struct {
	store      Store
	dispatcher Dispatcher
	blobs      Stager
	local      address.Address
	logger     *log.Logger
	metrics    *metrics
	now        func() time.Time
}

// NewEngine creates an Engine. Store, Dispatcher, Blobs and Local are required.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil || cfg.Dispatcher == nil || cfg.Blobs == nil {
		return nil, fmt.Errorf("groups: store, dispatcher and blobs are required")
	}
	if cfg.Local.IsZero() || cfg.Local.IsGroup() {
		return nil, fmt.Errorf("groups: invalid local identity %q", cfg.Local)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:      cfg.Store,
		dispatcher: cfg.Dispatcher,
		blobs:      cfg.Blobs,
		local:      cfg.Local,
		logger:     cfg.Logger,
		metrics:    m,
		now:        now,
	}, nil
}

// logf logs a message if the logger is non-nil.
func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// CreateGroup creates a group owned by the local identity with the given
// members plus the local identity. Secure groups announce themselves to all
// members; MMS groups only resolve their local thread.
//
// The group is durable before dispatch: a *DispatchError means the group
// exists but the announcement was not handed off.
func (e *Engine) CreateGroup(ctx context.Context, members []address.Address, avatar []byte, title *string, mms bool) (Result, error) {
	if err := checkMembers(members); err != nil {
		return Result{}, fmt.Errorf("groups: create: %w", err)
	}
	avatar = normalizeAvatar(avatar)

	raw, err := e.store.AllocateGroupID()
	if err != nil {
		return Result{}, fmt.Errorf("groups: allocate id: %w", err)
	}
	groupID := groupid.Encode(raw, mms)
	groupAddr, err := address.Parse(groupID)
	if err != nil {
		return Result{}, fmt.Errorf("groups: create: %w", err)
	}
	memberAddrs := address.Set(members, []address.Address{e.local})

	g := &store.Group{
		GroupID: groupID,
		Title:   title,
		Members: memberAddrs,
		Owner:   e.local,
		MMS:     mms,
	}
	if err := e.store.CreateGroup(g); err != nil {
		return Result{}, fmt.Errorf("groups: create %s: %w", groupID, err)
	}
	e.metrics.created.WithLabelValues(kindLabel(mms)).Inc()
	logf(e.logger, "group created: id=%s members=%d mms=%v", groupID, len(memberAddrs), mms)

	if mms {
		return e.localResult(groupAddr)
	}

	if err := e.store.UpdateGroupAvatar(groupID, avatar); err != nil {
		return Result{}, fmt.Errorf("groups: set avatar %s: %w", groupID, err)
	}
	if err := e.store.SetProfileSharing(groupAddr, true); err != nil {
		return Result{}, fmt.Errorf("groups: profile sharing %s: %w", groupID, err)
	}
	return e.sendGroupUpdate(ctx, groupUpdate{
		group:   groupAddr,
		members: memberAddrs,
		owner:   e.local,
		title:   title,
		avatar:  avatar,
	}, nil)
}

// UpdateGroup replaces the members, admins, title and avatar of an existing
// group. Nil title or avatar clears them. The local identity always remains a
// member and the owner never changes.
//
// Members that were present before and are missing now still receive this
// update, so they learn of their removal.
func (e *Engine) UpdateGroup(ctx context.Context, groupID string, members []address.Address, admins []string, avatar []byte, title *string) (Result, error) {
	if err := checkMembers(members); err != nil {
		return Result{}, fmt.Errorf("groups: update %s: %w", groupID, err)
	}
	adminAddrs, err := address.ParseAll(admins)
	if err != nil {
		return Result{}, fmt.Errorf("groups: update %s admins: %w", groupID, err)
	}
	avatar = normalizeAvatar(avatar)

	current, err := e.store.GetGroup(groupID)
	if err != nil {
		return Result{}, fmt.Errorf("groups: load %s: %w", groupID, err)
	}
	if current == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, groupID)
	}
	groupAddr, err := address.Parse(current.GroupID)
	if err != nil {
		return Result{}, fmt.Errorf("groups: update: %w", err)
	}

	others := removeIdentity(members, e.local)
	missing := lo.Without(removeIdentity(current.Members, e.local), others...)

	var recipients []address.Address
	if len(missing) > 0 {
		recipients = address.Set(missing, others)
	}

	memberAddrs := address.Set(others, []address.Address{e.local})
	adminAddrs = address.Set(adminAddrs)

	if err := e.store.ReplaceGroupState(groupID, memberAddrs, adminAddrs, title, avatar); err != nil {
		return Result{}, fmt.Errorf("groups: update %s: %w", groupID, err)
	}
	e.metrics.updated.WithLabelValues(kindLabel(current.MMS)).Inc()
	logf(e.logger, "group updated: id=%s members=%d admins=%d removed=%d",
		groupID, len(memberAddrs), len(adminAddrs), len(missing))

	if current.MMS {
		return e.localResult(groupAddr)
	}
	return e.sendGroupUpdate(ctx, groupUpdate{
		group:   groupAddr,
		members: memberAddrs,
		admins:  adminAddrs,
		owner:   current.Owner,
		title:   title,
		avatar:  avatar,
	}, recipients)
}

// localResult resolves the thread of a group that is not dispatched.
func (e *Engine) localResult(group address.Address) (Result, error) {
	threadID, err := e.store.ThreadIDFor(group)
	if err != nil {
		return Result{}, fmt.Errorf("groups: thread for %s: %w", group, err)
	}
	return Result{Group: group, ThreadID: threadID}, nil
}

// removeIdentity returns a copy of set without id.
func removeIdentity(set []address.Address, id address.Address) []address.Address {
	return lo.Filter(set, func(a address.Address, _ int) bool { return a != id })
}

func checkMembers(members []address.Address) error {
	for _, m := range members {
		if m.IsZero() || m.IsGroup() {
			return fmt.Errorf("%w: member %q", address.ErrInvalidIdentifier, m)
		}
	}
	return nil
}

func normalizeAvatar(avatar []byte) []byte {
	if len(avatar) == 0 {
		return nil
	}
	return avatar
}
