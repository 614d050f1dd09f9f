package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/gwillem/signal-groups/internal/address"
)

// SetProfileSharing records whether our profile is shared with a recipient.
func (s *Store) SetProfileSharing(recipient address.Address, enabled bool) error {
	_, err := s.db.Exec(
		`INSERT INTO recipient (address, profile_sharing) VALUES (?, ?)
		 ON CONFLICT (address) DO UPDATE SET profile_sharing = excluded.profile_sharing`,
		recipient.String(), enabled,
	)
	if err != nil {
		return fmt.Errorf("store: set profile sharing: %w", err)
	}
	return nil
}

// ProfileSharing reports whether profile sharing is enabled for a recipient.
// Unknown recipients report false.
func (s *Store) ProfileSharing(recipient address.Address) (bool, error) {
	var enabled bool
	err := s.db.QueryRow(
		"SELECT profile_sharing FROM recipient WHERE address = ?", recipient.String(),
	).Scan(&enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("store: get profile sharing: %w", err)
	}
	return enabled, nil
}
