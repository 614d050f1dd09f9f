// Package signal provides a high-level client for managing Signal group
// conversations: creating groups, changing membership and announcing each
// change to the other participants.
package signal

import (
	"context"
	"crypto/tls"
	"fmt"
	"iter"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"

	"github.com/gwillem/signal-groups/internal/address"
	"github.com/gwillem/signal-groups/internal/blob"
	"github.com/gwillem/signal-groups/internal/dispatch"
	"github.com/gwillem/signal-groups/internal/groups"
	"github.com/gwillem/signal-groups/internal/media"
	"github.com/gwillem/signal-groups/internal/signalws"
	"github.com/gwillem/signal-groups/internal/store"
)

// Group represents a group stored locally.
type Group = store.Group

// GroupResult identifies the conversation a group action was applied to.
type GroupResult = groups.Result

// MediaRecord is an attachment listed by Media.
type MediaRecord = store.MediaRecord

// MediaQuery selects the media returned by Media.
type MediaQuery = media.Query

// OutgoingMessage is a logged group control message.
type OutgoingMessage = store.OutgoingMessage

// DispatchError reports a group change that was saved but not propagated.
type DispatchError = groups.DispatchError

var (
	// ErrGroupNotFound is returned when updating an unknown group.
	ErrGroupNotFound = groups.ErrNotFound
	// ErrInvalidIdentifier is returned for unparseable member or admin identifiers.
	ErrInvalidIdentifier = address.ErrInvalidIdentifier
	// ErrInvalidMediaType is returned for an unknown media type filter.
	ErrInvalidMediaType = media.ErrInvalidMediaType
)

// Client is the main entry point for managing groups.
type Client struct {
	dbPath      string
	dispatchURL string
	tlsConfig   *tls.Config
	logger      *log.Logger
	registerer  prometheus.Registerer

	store  *store.Store
	local  address.Address
	blobs  *blob.Provider
	conn   *signalws.PersistentConn
	engine *groups.Engine
	media  *media.Loader
}

// Option configures a Client.
type Option func(*Client)

// WithDBPath overrides the database path for persistent storage.
// If not set, the single database in $XDG_DATA_HOME/signal-groups is used.
func WithDBPath(path string) Option {
	return func(c *Client) { c.dbPath = path }
}

// WithLogger sets the logger for verbose output.
// If not set, logging is disabled.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithDispatchURL sets the WebSocket URL group updates are pushed to.
// If not set, updates are only recorded in the local outbox.
func WithDispatchURL(url string) Option {
	return func(c *Client) { c.dispatchURL = url }
}

// WithTLSConfig overrides the TLS configuration used for the dispatch connection.
func WithTLSConfig(tc *tls.Config) Option {
	return func(c *Client) { c.tlsConfig = tc }
}

// WithRegisterer registers the group metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) { c.registerer = reg }
}

// NewClient creates a new client. Call Init or Load before use.
func NewClient(opts ...Option) *Client {
	c := &Client{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open opens an existing account by phone number (e.g. "+31647272794").
// It finds the database in the default data directory, opens it, and loads the account.
func Open(ctx context.Context, number string, opts ...Option) (*Client, error) {
	dbPath, err := DiscoverDBByNumber(number)
	if err != nil {
		return nil, err
	}
	c := NewClient(append(opts, WithDBPath(dbPath))...)
	if err := c.Load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Init creates the local account for number and loads the client.
func (c *Client) Init(ctx context.Context, number string) error {
	local, err := address.Parse(number)
	if err != nil {
		return fmt.Errorf("client: local number: %w", err)
	}
	if local.IsGroup() {
		return fmt.Errorf("client: local number %s is a group", local)
	}
	if c.dbPath == "" {
		c.dbPath = filepath.Join(store.DefaultDataDir(), strings.TrimPrefix(local.String(), "+")+".db")
	}
	s, err := store.Open(c.dbPath)
	if err != nil {
		return fmt.Errorf("client: open store: %w", err)
	}
	defer s.Close()

	acct, err := s.LoadAccount()
	if err != nil {
		return fmt.Errorf("client: load account: %w", err)
	}
	if acct != nil && acct.Number != local.String() {
		return fmt.Errorf("client: database already belongs to %s", acct.Number)
	}
	if acct == nil {
		acct = &store.Account{Number: local.String(), ACI: uuid.NewString()}
		if err := s.SaveAccount(acct); err != nil {
			return fmt.Errorf("client: save account: %w", err)
		}
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("client: close store: %w", err)
	}
	return c.Load(ctx)
}

// Load opens the database, loads the local account and wires the group
// engine. If a dispatch URL is configured the WebSocket is dialed here and
// redialed whenever a push finds it broken.
func (c *Client) Load(ctx context.Context) error {
	if err := c.load(ctx); err != nil {
		c.Close()
		return err
	}
	return nil
}

func (c *Client) load(ctx context.Context) error {
	if c.dbPath == "" {
		discovered, err := discoverDB()
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		c.dbPath = discovered
	}
	logf(c.logger, "opening database path=%s", c.dbPath)

	s, err := store.Open(c.dbPath)
	if err != nil {
		return fmt.Errorf("client: open store: %w", err)
	}
	c.store = s

	acct, err := s.LoadAccount()
	if err != nil {
		return fmt.Errorf("client: load account: %w", err)
	}
	if acct == nil {
		return fmt.Errorf("client: no account found in database (run 'sgnl init' first)")
	}
	if c.local, err = address.Parse(acct.Number); err != nil {
		return fmt.Errorf("client: account number: %w", err)
	}

	var transport dispatch.Transport
	if c.dispatchURL != "" {
		conn, err := signalws.DialPersistent(ctx, c.dispatchURL, c.tlsConfig, signalws.WithLogger(c.logger))
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		c.conn = conn
		transport = conn
		logf(c.logger, "dispatch connected url=%s", c.dispatchURL)
	}

	c.blobs = blob.NewProvider()
	c.engine, err = groups.NewEngine(groups.Config{
		Store:      s,
		Dispatcher: dispatch.NewSender(s, c.blobs, transport, c.logger),
		Blobs:      c.blobs,
		Local:      c.local,
		Logger:     c.logger,
		Registerer: c.registerer,
	})
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	c.media = media.NewLoader(s)
	return nil
}

// Close closes the dispatch connection and the database.
func (c *Client) Close() error {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.store != nil {
		s := c.store
		c.store, c.engine, c.media = nil, nil, nil
		return s.Close()
	}
	return nil
}

// Number returns the local account's phone number.
func (c *Client) Number() string {
	return c.local.String()
}

// CreateGroup creates a group with the given members; the local account is
// always added and becomes the owner. Secure groups are announced to their
// members, MMS groups stay local.
func (c *Client) CreateGroup(ctx context.Context, members []string, avatar []byte, title *string, mms bool) (GroupResult, error) {
	if c.engine == nil {
		return GroupResult{}, fmt.Errorf("client not loaded")
	}
	addrs, err := address.ParseAll(members)
	if err != nil {
		return GroupResult{}, fmt.Errorf("client: members: %w", err)
	}
	return c.engine.CreateGroup(ctx, addrs, avatar, title, mms)
}

// UpdateGroup replaces members, admins, title and avatar of a group.
// A nil title or avatar clears it.
func (c *Client) UpdateGroup(ctx context.Context, groupID string, members, admins []string, avatar []byte, title *string) (GroupResult, error) {
	if c.engine == nil {
		return GroupResult{}, fmt.Errorf("client not loaded")
	}
	addrs, err := address.ParseAll(members)
	if err != nil {
		return GroupResult{}, fmt.Errorf("client: members: %w", err)
	}
	return c.engine.UpdateGroup(ctx, groupID, addrs, admins, avatar, title)
}

// Groups returns all locally stored groups.
func (c *Client) Groups() ([]*Group, error) {
	if c.store == nil {
		return nil, fmt.Errorf("client not loaded")
	}
	return c.store.GetAllGroups()
}

// GetGroup returns a group by its id, or nil if not found.
func (c *Client) GetGroup(groupID string) (*Group, error) {
	if c.store == nil {
		return nil, fmt.Errorf("client not loaded")
	}
	return c.store.GetGroup(groupID)
}

// Media returns the media selected by q, evaluated lazily.
func (c *Client) Media(q MediaQuery) (iter.Seq2[*MediaRecord, error], error) {
	if c.media == nil {
		return nil, fmt.Errorf("client not loaded")
	}
	return c.media.Load(q)
}

// Outbox returns the control messages logged for a group, oldest first.
func (c *Client) Outbox(groupID string) ([]*OutgoingMessage, error) {
	if c.store == nil {
		return nil, fmt.Errorf("client not loaded")
	}
	group, err := address.Parse(groupID)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	threadID, err := c.store.ThreadIDFor(group)
	if err != nil {
		return nil, err
	}
	return c.store.OutgoingMessages(threadID)
}

// logf logs a message if the logger is non-nil.
func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// accountDB is an account database found in the data directory.
type accountDB struct {
	path   string
	number string // empty when the file has no readable account
}

func (a accountDB) String() string {
	if a.number == "" {
		return filepath.Base(a.path)
	}
	return a.number + " (" + filepath.Base(a.path) + ")"
}

// discoverDB returns the only account database in the data directory.
func discoverDB() (string, error) {
	dbs, err := accountDBs()
	if err != nil {
		return "", err
	}
	switch len(dbs) {
	case 0:
		return "", fmt.Errorf("no account database in %s (run 'sgnl init <number>')", store.DefaultDataDir())
	case 1:
		return dbs[0].path, nil
	}
	names := lo.Map(dbs, func(a accountDB, _ int) string { return a.String() })
	return "", fmt.Errorf("%d account databases in %s, choose one with WithDBPath or Open:\n  %s",
		len(dbs), store.DefaultDataDir(), strings.Join(names, "\n  "))
}

// DiscoverDBByNumber returns the database path of the account for number.
func DiscoverDBByNumber(number string) (string, error) {
	local, err := address.Parse(number)
	if err != nil {
		return "", err
	}
	dbs, err := accountDBs()
	if err != nil {
		return "", err
	}
	db, ok := lo.Find(dbs, func(a accountDB) bool { return a.number == local.String() })
	if !ok {
		return "", fmt.Errorf("no account database for %s in %s", local, store.DefaultDataDir())
	}
	return db.path, nil
}

// accountDBs lists the .db files of the data directory with their account number.
func accountDBs() ([]accountDB, error) {
	paths, err := filepath.Glob(filepath.Join(store.DefaultDataDir(), "*.db"))
	if err != nil {
		return nil, fmt.Errorf("scan data dir: %w", err)
	}
	return lo.Map(paths, func(p string, _ int) accountDB {
		return accountDB{path: p, number: accountNumber(p)}
	}), nil
}

// accountNumber reads the account number stored at dbPath, or "" if there is none.
func accountNumber(dbPath string) string {
	s, err := store.Open(dbPath)
	if err != nil {
		return ""
	}
	defer s.Close()

	acct, err := s.LoadAccount()
	if err != nil || acct == nil {
		return ""
	}
	return acct.Number
}
