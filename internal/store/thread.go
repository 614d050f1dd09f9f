package store

import (
	"fmt"
	"time"

	"github.com/gwillem/signal-groups/internal/address"
)

// ThreadIDFor returns the conversation thread for a recipient, creating it
// on first use.
func (s *Store) ThreadIDFor(recipient address.Address) (int64, error) {
	if recipient.IsZero() {
		return 0, fmt.Errorf("store: thread for empty recipient")
	}
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO thread (recipient, created_at) VALUES (?, ?)",
		recipient.String(), time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: create thread: %w", err)
	}
	var id int64
	err = s.db.QueryRow(
		"SELECT id FROM thread WHERE recipient = ?", recipient.String(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: get thread: %w", err)
	}
	return id, nil
}
