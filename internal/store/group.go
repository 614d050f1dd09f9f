package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gwillem/signal-groups/internal/address"
)

// ErrGroupNotFound is returned by writes that target an unknown group.
var ErrGroupNotFound = errors.New("store: group not found")

// Group is the persisted state of a group conversation.
type Group struct {
	GroupID   string            // serialized group id, see package groupid
	Title     *string           // nil when the group has no title
	Avatar    []byte            // nil when the group has no avatar
	Members   []address.Address // always includes the local identity
	Admins    []address.Address // may be empty
	Owner     address.Address   // set at creation, never changed
	MMS       bool              // legacy MMS group, never dispatched
	CreatedAt time.Time
	UpdatedAt time.Time
}

const groupColumns = "group_id, title, avatar, members, admins, owner, mms, created_at, updated_at"

// AllocateGroupID returns 16 fresh random bytes not used by any stored group.
func (s *Store) AllocateGroupID() ([]byte, error) {
	for {
		id := uuid.New()
		var n int
		err := s.db.QueryRow(
			"SELECT COUNT(*) FROM groups WHERE substr(group_id, -32) = ?",
			fmt.Sprintf("%x", id[:]),
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("store: allocate group id: %w", err)
		}
		if n == 0 {
			return id[:], nil
		}
	}
}

// CreateGroup inserts a new group record. It fails if the id is already taken.
func (s *Store) CreateGroup(g *Group) error {
	members, err := encodeAddresses(g.Members)
	if err != nil {
		return err
	}
	admins, err := encodeAddresses(g.Admins)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.Exec(
		`INSERT INTO groups (`+groupColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.GroupID, nullString(g.Title), g.Avatar, members, admins, g.Owner.String(), g.MMS,
		now.Unix(), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: create group: %w", err)
	}
	g.CreatedAt = time.Unix(now.Unix(), 0)
	g.UpdatedAt = g.CreatedAt
	return nil
}

// GetGroup retrieves a group by its serialized id.
// Returns nil, nil if the group does not exist.
func (s *Store) GetGroup(groupID string) (*Group, error) {
	g, err := scanGroup(s.db.QueryRow(
		"SELECT "+groupColumns+" FROM groups WHERE group_id = ?", groupID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get group: %w", err)
	}
	return g, nil
}

// GetAllGroups retrieves all stored groups ordered by title.
func (s *Store) GetAllGroups() ([]*Group, error) {
	rows, err := s.db.Query(
		"SELECT " + groupColumns + " FROM groups ORDER BY title, group_id",
	)
	if err != nil {
		return nil, fmt.Errorf("store: list groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list groups: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateGroupAvatar replaces the avatar of a group. A nil avatar clears it.
func (s *Store) UpdateGroupAvatar(groupID string, avatar []byte) error {
	res, err := s.db.Exec(
		"UPDATE groups SET avatar = ?, updated_at = ? WHERE group_id = ?",
		avatar, time.Now().Unix(), groupID,
	)
	if err != nil {
		return fmt.Errorf("store: update avatar: %w", err)
	}
	return checkAffected(res, groupID)
}

// ReplaceGroupState overwrites members, admins, title and avatar of a group
// in a single statement, so concurrent readers see either the old or the new
// state. Owner and MMS flag are left untouched.
func (s *Store) ReplaceGroupState(groupID string, members, admins []address.Address, title *string, avatar []byte) error {
	encMembers, err := encodeAddresses(members)
	if err != nil {
		return err
	}
	encAdmins, err := encodeAddresses(admins)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE groups SET members = ?, admins = ?, title = ?, avatar = ?, updated_at = ?
		 WHERE group_id = ?`,
		encMembers, encAdmins, nullString(title), avatar, time.Now().Unix(), groupID,
	)
	if err != nil {
		return fmt.Errorf("store: replace group state: %w", err)
	}
	return checkAffected(res, groupID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*Group, error) {
	var (
		g                  Group
		title              sql.NullString
		members, admins    string
		owner              string
		createdAt, updated int64
	)
	if err := row.Scan(&g.GroupID, &title, &g.Avatar, &members, &admins, &owner, &g.MMS, &createdAt, &updated); err != nil {
		return nil, err
	}
	if title.Valid {
		g.Title = &title.String
	}
	var err error
	if g.Members, err = decodeAddresses(members); err != nil {
		return nil, fmt.Errorf("members of %s: %w", g.GroupID, err)
	}
	if g.Admins, err = decodeAddresses(admins); err != nil {
		return nil, fmt.Errorf("admins of %s: %w", g.GroupID, err)
	}
	if g.Owner, err = address.Parse(owner); err != nil {
		return nil, fmt.Errorf("owner of %s: %w", g.GroupID, err)
	}
	g.CreatedAt = time.Unix(createdAt, 0)
	g.UpdatedAt = time.Unix(updated, 0)
	return &g, nil
}

// encodeAddresses stores a sorted, de-duplicated JSON array of canonical forms.
func encodeAddresses(addrs []address.Address) (string, error) {
	data, err := json.Marshal(address.Strings(address.Set(addrs)))
	if err != nil {
		return "", fmt.Errorf("store: encode addresses: %w", err)
	}
	return string(data), nil
}

func decodeAddresses(s string) ([]address.Address, error) {
	var raw []string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	return address.ParseAll(raw)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func checkAffected(res sql.Result, groupID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	return nil
}
