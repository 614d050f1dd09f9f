package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gwillem/signal-groups/internal/address"
)

// OutgoingMessage is a logged group control message.
type OutgoingMessage struct {
	ID         int64
	ThreadID   int64
	GroupID    string
	Body       []byte            // encoded GroupContext
	Recipients []address.Address // nil when delivered to the current members
	SentAt     time.Time
	ExpiresIn  time.Duration
}

// InsertOutgoing logs an outgoing message and, when avatar is non-nil, links
// the avatar part to it. Both rows are written in one transaction.
func (s *Store) InsertOutgoing(msg *OutgoingMessage, avatar *MediaRecord) (int64, error) {
	var recipients sql.NullString
	if msg.Recipients != nil {
		data, err := json.Marshal(address.Strings(msg.Recipients))
		if err != nil {
			return 0, fmt.Errorf("store: encode recipients: %w", err)
		}
		recipients = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO outgoing (thread_id, group_id, body, recipients, sent_at, expires_in)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ThreadID, msg.GroupID, msg.Body, recipients, msg.SentAt.UnixMilli(), msg.ExpiresIn.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert outgoing: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: outgoing id: %w", err)
	}

	if avatar != nil {
		avatar.ThreadID = msg.ThreadID
		avatar.MessageID = id
		if _, err := insertPart(tx, avatar); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	msg.ID = id
	return id, nil
}

// OutgoingMessages returns the logged messages of a thread, oldest first.
func (s *Store) OutgoingMessages(threadID int64) ([]*OutgoingMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, thread_id, group_id, body, recipients, sent_at, expires_in
		 FROM outgoing WHERE thread_id = ? ORDER BY id`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list outgoing: %w", err)
	}
	defer rows.Close()

	var msgs []*OutgoingMessage
	for rows.Next() {
		var (
			m                 OutgoingMessage
			recipients        sql.NullString
			sentAt, expiresIn int64
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.GroupID, &m.Body, &recipients, &sentAt, &expiresIn); err != nil {
			return nil, fmt.Errorf("store: scan outgoing: %w", err)
		}
		if recipients.Valid {
			var raw []string
			if err := json.Unmarshal([]byte(recipients.String), &raw); err != nil {
				return nil, fmt.Errorf("store: decode recipients: %w", err)
			}
			if m.Recipients, err = address.ParseAll(raw); err != nil {
				return nil, fmt.Errorf("store: decode recipients: %w", err)
			}
		}
		m.SentAt = time.UnixMilli(sentAt)
		m.ExpiresIn = time.Duration(expiresIn) * time.Millisecond
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}
