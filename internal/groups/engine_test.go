package groups

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/signal-groups/internal/address"
	"github.com/gwillem/signal-groups/internal/blob"
	"github.com/gwillem/signal-groups/internal/proto"
	"github.com/gwillem/signal-groups/internal/store"
)

var (
	local = address.MustParse("+15550000000")
	alice = address.MustParse("+15550000001")
	bob   = address.MustParse("+15550000002")
	carol = address.MustParse("+15550000003")
)

// memStore is an in-memory Store.
type memStore struct {
	nextID   byte
	groups   map[string]*store.Group
	threads  map[address.Address]int64
	sharing  map[address.Address]bool
	replaces int
}

func newMemStore() *memStore {
	return &memStore{
		groups:  make(map[string]*store.Group),
		threads: make(map[address.Address]int64),
		sharing: make(map[address.Address]bool),
	}
}

func (m *memStore) AllocateGroupID() ([]byte, error) {
	m.nextID++
	return []byte{0xca, 0xfe, m.nextID}, nil
}

func (m *memStore) CreateGroup(g *store.Group) error {
	if _, ok := m.groups[g.GroupID]; ok {
		return fmt.Errorf("duplicate %s", g.GroupID)
	}
	c := *g
	c.Members = slices.Clone(g.Members)
	c.Admins = slices.Clone(g.Admins)
	m.groups[g.GroupID] = &c
	return nil
}

func (m *memStore) GetGroup(groupID string) (*store.Group, error) {
	g, ok := m.groups[groupID]
	if !ok {
		return nil, nil
	}
	c := *g
	return &c, nil
}

func (m *memStore) UpdateGroupAvatar(groupID string, avatar []byte) error {
	g, ok := m.groups[groupID]
	if !ok {
		return store.ErrGroupNotFound
	}
	g.Avatar = avatar
	return nil
}

func (m *memStore) ReplaceGroupState(groupID string, members, admins []address.Address, title *string, avatar []byte) error {
	g, ok := m.groups[groupID]
	if !ok {
		return store.ErrGroupNotFound
	}
	m.replaces++
	g.Members = slices.Clone(members)
	g.Admins = slices.Clone(admins)
	g.Title = title
	g.Avatar = avatar
	return nil
}

func (m *memStore) SetProfileSharing(recipient address.Address, enabled bool) error {
	m.sharing[recipient] = enabled
	return nil
}

func (m *memStore) ThreadIDFor(recipient address.Address) (int64, error) {
	if id, ok := m.threads[recipient]; ok {
		return id, nil
	}
	id := int64(len(m.threads) + 100)
	m.threads[recipient] = id
	return id, nil
}

type sentMessage struct {
	msg        *OutgoingGroupMessage
	recipients []address.Address
}

// captureDispatcher records every Send call.
type captureDispatcher struct {
	sent     []sentMessage
	threadID int64
	err      error
}

func (d *captureDispatcher) Send(_ context.Context, msg *OutgoingGroupMessage, recipients []address.Address) (int64, error) {
	d.sent = append(d.sent, sentMessage{msg: msg, recipients: recipients})
	return d.threadID, d.err
}

type fixture struct {
	engine *Engine
	store  *memStore
	disp   *captureDispatcher
	blobs  *blob.Provider
	reg    *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		disp:  &captureDispatcher{threadID: 42},
		blobs: blob.NewProvider(),
		reg:   prometheus.NewRegistry(),
	}
	e, err := NewEngine(Config{
		Store:      f.store,
		Dispatcher: f.disp,
		Blobs:      f.blobs,
		Local:      local,
		Registerer: f.reg,
		Now:        func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
	require.NoError(t, err)
	f.engine = e
	return f
}

func ptr(s string) *string { return &s }

func TestCreateSecureGroup(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	res, err := f.engine.CreateGroup(context.Background(), []address.Address{alice, bob}, nil, ptr("Team"), false)
	req.NoError(err)
	req.Equal(int64(42), res.ThreadID)
	req.True(res.Group.IsGroup())
	req.False(res.Group.IsMMSGroup())

	g := f.store.groups[res.Group.String()]
	req.NotNil(g)
	req.ElementsMatch([]address.Address{alice, bob, local}, g.Members)
	req.Empty(g.Admins)
	req.Equal(local, g.Owner)
	req.Nil(g.Avatar)
	req.True(f.store.sharing[res.Group])

	req.Len(f.disp.sent, 1)
	sent := f.disp.sent[0]
	req.Nil(sent.recipients)
	req.Nil(sent.msg.Avatar)
	gc := sent.msg.Context
	req.Equal(proto.GroupContext_UPDATE, gc.GetType())
	req.Equal([]string{"+15550000000", "+15550000001", "+15550000002"}, gc.Members)
	req.Empty(gc.Admins)
	req.Equal("Team", gc.GetName())
	req.Equal(local.String(), gc.GetOwner())
	req.Equal([]byte{0xca, 0xfe, 0x01}, gc.Id)
	req.Equal(res.Group, sent.msg.Group)
}

func TestCreateGroupIncludesLocalOnce(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.CreateGroup(context.Background(), []address.Address{local, alice, alice, local}, nil, nil, false)
	require.NoError(t, err)

	g := f.store.groups[res.Group.String()]
	require.Equal(t, []address.Address{local, alice}, g.Members)
	require.Nil(t, f.disp.sent[0].msg.Context.Name, "absent title must not be serialized")
}

func TestCreateGroupWithNoMembers(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.CreateGroup(context.Background(), nil, nil, nil, false)
	require.NoError(t, err)
	require.Equal(t, []address.Address{local}, f.store.groups[res.Group.String()].Members)
}

func TestCreateMMSGroupDoesNotDispatch(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	res, err := f.engine.CreateGroup(context.Background(), []address.Address{alice}, []byte("avatar"), ptr("Family"), true)
	req.NoError(err)
	req.True(res.Group.IsMMSGroup())
	req.Empty(f.disp.sent)
	req.Equal(f.store.threads[res.Group], res.ThreadID)

	g := f.store.groups[res.Group.String()]
	req.True(g.MMS)
	req.Nil(g.Avatar, "mms groups do not store the avatar on create")
	req.False(f.store.sharing[res.Group])
}

func TestCreateGroupRejectsInvalidMember(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateGroup(context.Background(), []address.Address{alice, {}}, nil, nil, false)
	require.ErrorIs(t, err, address.ErrInvalidIdentifier)
	require.Empty(t, f.store.groups)
}

func TestCreateGroupWithAvatar(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	res, err := f.engine.CreateGroup(context.Background(), []address.Address{alice}, png, nil, false)
	req.NoError(err)
	req.Equal(png, f.store.groups[res.Group.String()].Avatar)

	att := f.disp.sent[0].msg.Avatar
	req.NotNil(att)
	req.Equal("image/png", att.ContentType)
	req.Equal(int64(len(png)), att.Size)
	req.Equal(TransferDone, att.Progress)

	staged, err := f.blobs.Take(att.URI)
	req.NoError(err)
	req.Equal(png, staged)
}

func createSecure(t *testing.T, f *fixture, members ...address.Address) string {
	t.Helper()
	res, err := f.engine.CreateGroup(context.Background(), members, nil, ptr("Team"), false)
	require.NoError(t, err)
	f.disp.sent = nil
	return res.Group.String()
}

func TestUpdateRemovesAndAddsMembers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	groupID := createSecure(t, f, alice, bob)

	res, err := f.engine.UpdateGroup(context.Background(), groupID, []address.Address{alice, carol, local}, nil, nil, ptr("Team"))
	req.NoError(err)
	req.Equal(int64(42), res.ThreadID)

	g := f.store.groups[groupID]
	req.ElementsMatch([]address.Address{alice, carol, local}, g.Members)

	req.Len(f.disp.sent, 1)
	sent := f.disp.sent[0]
	req.Contains(sent.recipients, bob, "removed member must be told")
	req.Contains(sent.recipients, carol)
	req.Contains(sent.recipients, alice)
	req.NotContains(sent.recipients, local)
	req.Equal([]string{"+15550000000", "+15550000001", "+15550000003"}, sent.msg.Context.Members)
}

func TestUpdateWithoutRemovalUsesDefaultRecipients(t *testing.T) {
	f := newFixture(t)
	groupID := createSecure(t, f, alice)

	_, err := f.engine.UpdateGroup(context.Background(), groupID, []address.Address{alice, bob}, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, f.disp.sent, 1)
	require.Nil(t, f.disp.sent[0].recipients)
}

func TestUpdateWithEmptyMembersKeepsLocal(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	groupID := createSecure(t, f, alice, bob)

	_, err := f.engine.UpdateGroup(context.Background(), groupID, nil, nil, nil, nil)
	req.NoError(err)
	req.Equal([]address.Address{local}, f.store.groups[groupID].Members)
	req.Equal([]address.Address{alice, bob}, f.disp.sent[0].recipients)
	req.Equal([]string{local.String()}, f.disp.sent[0].msg.Context.Members)
}

func TestUpdateFullReplace(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	groupID := createSecure(t, f, alice)
	f.store.groups[groupID].Avatar = []byte("old")

	_, err := f.engine.UpdateGroup(context.Background(), groupID, []address.Address{alice}, []string{"+1 555 000 0001"}, nil, nil)
	req.NoError(err)

	g := f.store.groups[groupID]
	req.Nil(g.Title, "absent title clears it")
	req.Nil(g.Avatar, "absent avatar clears it")
	req.Equal([]address.Address{alice}, g.Admins)

	gc := f.disp.sent[0].msg.Context
	req.Nil(gc.Name)
	req.Equal([]string{alice.String()}, gc.Admins)
	req.Nil(f.disp.sent[0].msg.Avatar)
}

func TestOwnerIsImmutable(t *testing.T) {
	f := newFixture(t)
	groupID := createSecure(t, f, alice, bob)

	for _, members := range [][]address.Address{{bob}, {alice, carol}, nil, {alice, bob, carol}} {
		_, err := f.engine.UpdateGroup(context.Background(), groupID, members, []string{carol.String()}, nil, nil)
		require.NoError(t, err)
		require.Equal(t, local, f.store.groups[groupID].Owner)
		require.Equal(t, local.String(), f.disp.sent[len(f.disp.sent)-1].msg.Context.GetOwner())
	}
}

func TestUpdateUnknownGroup(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.UpdateGroup(context.Background(), "__textsecure_group__!00ff", []address.Address{alice}, nil, nil, nil)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, f.disp.sent)
}

func TestUpdateInvalidAdminAbortsBeforePersistence(t *testing.T) {
	f := newFixture(t)
	groupID := createSecure(t, f, alice)

	_, err := f.engine.UpdateGroup(context.Background(), groupID, []address.Address{bob}, []string{"not-a-number"}, nil, nil)
	require.ErrorIs(t, err, address.ErrInvalidIdentifier)
	require.Zero(t, f.store.replaces)
	require.Equal(t, []address.Address{local, alice}, f.store.groups[groupID].Members)
	require.Empty(t, f.disp.sent)
}

func TestUpdateMMSGroupDoesNotDispatch(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	res, err := f.engine.CreateGroup(context.Background(), []address.Address{alice, bob}, nil, nil, true)
	req.NoError(err)

	upd, err := f.engine.UpdateGroup(context.Background(), res.Group.String(), []address.Address{alice}, nil, []byte("img"), ptr("Renamed"))
	req.NoError(err)
	req.Empty(f.disp.sent)
	req.Equal(res.ThreadID, upd.ThreadID)

	g := f.store.groups[res.Group.String()]
	req.Equal([]address.Address{local, alice}, g.Members)
	req.Equal("Renamed", *g.Title)
	req.Equal([]byte("img"), g.Avatar)
}

func TestDispatchFailureKeepsState(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.disp.err = errors.New("connection reset")

	res, err := f.engine.CreateGroup(context.Background(), []address.Address{alice}, nil, nil, false)
	var dispErr *DispatchError
	req.ErrorAs(err, &dispErr)
	req.Equal(res.Group.String(), dispErr.GroupID)
	req.ErrorContains(err, "connection reset")
	req.True(res.Group.IsGroup())
	req.Contains(f.store.groups, res.Group.String(), "group must be durable despite dispatch failure")

	req.Equal(float64(1), testutil.ToFloat64(f.engine.metrics.dispatched.WithLabelValues("error")))
}

func TestDispatchFailureReleasesAvatar(t *testing.T) {
	f := newFixture(t)
	f.disp.err = errors.New("connection reset")

	_, err := f.engine.CreateGroup(context.Background(), []address.Address{alice}, []byte("png"), nil, false)
	require.ErrorAs(t, err, new(*DispatchError))
	require.Zero(t, f.blobs.Len(), "staged avatar must not outlive a failed dispatch")
}

func TestLocalIdentityInOtherFormatting(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	selfFormatted := address.MustParse("+1 (555) 000-0000")
	selfIntl := address.MustParse("001 555 000 0000")

	res, err := f.engine.CreateGroup(context.Background(), []address.Address{selfFormatted, alice, selfIntl, bob}, nil, nil, false)
	req.NoError(err)
	groupID := res.Group.String()
	req.Equal([]address.Address{local, alice, bob}, f.store.groups[groupID].Members)
	req.Equal([]string{"+15550000000", "+15550000001", "+15550000002"}, f.disp.sent[0].msg.Context.Members)

	f.disp.sent = nil
	_, err = f.engine.UpdateGroup(context.Background(), groupID, []address.Address{selfIntl}, nil, nil, nil)
	req.NoError(err)
	req.Equal([]address.Address{local}, f.store.groups[groupID].Members)
	req.Len(f.disp.sent, 1)
	req.Equal([]address.Address{alice, bob}, f.disp.sent[0].recipients, "self must not receive its own update")
	req.Equal([]string{"+15550000000"}, f.disp.sent[0].msg.Context.Members)
}

func TestEnginesShareRegisterer(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	cfg := Config{
		Store:      newMemStore(),
		Dispatcher: &captureDispatcher{threadID: 1},
		Blobs:      blob.NewProvider(),
		Local:      local,
		Registerer: reg,
	}
	first, err := NewEngine(cfg)
	req.NoError(err)
	second, err := NewEngine(cfg)
	req.NoError(err)

	for _, e := range []*Engine{first, second} {
		_, err := e.CreateGroup(context.Background(), []address.Address{alice}, nil, nil, false)
		req.NoError(err)
	}
	req.Equal(float64(2), testutil.ToFloat64(first.metrics.created.WithLabelValues("secure")))

	// A foreign collector under the same name is an error, not a panic.
	clash := prometheus.NewRegistry()
	clash.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{Name: "signal_groups_created_total", Help: "clash"}))
	cfg.Registerer = clash
	_, err = NewEngine(cfg)
	req.Error(err)
}

func TestMetrics(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	groupID := createSecure(t, f, alice)
	_, err := f.engine.CreateGroup(context.Background(), []address.Address{bob}, nil, nil, true)
	req.NoError(err)
	_, err = f.engine.UpdateGroup(context.Background(), groupID, []address.Address{bob}, nil, nil, nil)
	req.NoError(err)

	req.Equal(float64(1), testutil.ToFloat64(f.engine.metrics.created.WithLabelValues("secure")))
	req.Equal(float64(1), testutil.ToFloat64(f.engine.metrics.created.WithLabelValues("mms")))
	req.Equal(float64(1), testutil.ToFloat64(f.engine.metrics.updated.WithLabelValues("secure")))
	req.Equal(float64(2), testutil.ToFloat64(f.engine.metrics.dispatched.WithLabelValues("ok")))

	n, err := testutil.GatherAndCount(f.reg, "signal_groups_created_total")
	req.NoError(err)
	req.Equal(2, n)
}

func TestRemoveIdentityReturnsCopy(t *testing.T) {
	in := []address.Address{alice, local, bob}
	out := removeIdentity(in, local)
	require.Equal(t, []address.Address{alice, bob}, out)
	require.Equal(t, []address.Address{alice, local, bob}, in, "input must not be mutated")
}

func TestBuildGroupContextRejectsNonGroup(t *testing.T) {
	_, err := buildGroupContext(groupUpdate{group: alice})
	require.Error(t, err)
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(Config{})
	require.Error(t, err)

	_, err = NewEngine(Config{
		Store:      newMemStore(),
		Dispatcher: &captureDispatcher{},
		Blobs:      blob.NewProvider(),
		Local:      address.MustParse("__textsecure_group__!00"),
	})
	require.Error(t, err)
}
