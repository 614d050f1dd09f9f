package store

import (
	"database/sql"
	"fmt"
	"iter"
	"time"
)

// MediaRecord is an attachment part stored in a conversation thread.
type MediaRecord struct {
	ID          int64
	ThreadID    int64
	MessageID   int64 // 0 when not linked to a logged message
	ContentType string
	Size        int64
	Data        []byte
	CreatedAt   time.Time
}

const mediaColumns = "id, thread_id, COALESCE(message_id, 0), content_type, size, data, created_at"

// galleryFilter matches the content types shown in a conversation gallery.
const galleryFilter = "(content_type LIKE 'image/%' OR content_type LIKE 'video/%')"

// sqlExecer is satisfied by both *sql.DB and *sql.Tx.
type sqlExecer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// InsertPart stores a media part and returns its id.
func (s *Store) InsertPart(p *MediaRecord) (int64, error) {
	return insertPart(s.db, p)
}

func insertPart(db sqlExecer, p *MediaRecord) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	var messageID sql.NullInt64
	if p.MessageID != 0 {
		messageID = sql.NullInt64{Int64: p.MessageID, Valid: true}
	}
	res, err := db.Exec(
		`INSERT INTO part (thread_id, message_id, content_type, size, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ThreadID, messageID, p.ContentType, p.Size, p.Data, p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert part: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert part id: %w", err)
	}
	p.ID = id
	return id, nil
}

// MediaByMimeType yields all parts whose content type has the given
// top-level type ("image", "video"). An empty kind yields every part.
func (s *Store) MediaByMimeType(kind string) iter.Seq2[*MediaRecord, error] {
	if kind == "" {
		return s.queryMedia("SELECT " + mediaColumns + " FROM part ORDER BY created_at DESC, id DESC")
	}
	return s.queryMedia(
		"SELECT "+mediaColumns+" FROM part WHERE content_type LIKE ? ORDER BY created_at DESC, id DESC",
		kind+"/%",
	)
}

// GalleryMediaForThread yields the image and video parts of a thread, newest first.
func (s *Store) GalleryMediaForThread(threadID int64) iter.Seq2[*MediaRecord, error] {
	return s.queryMedia(
		"SELECT "+mediaColumns+" FROM part WHERE thread_id = ? AND "+galleryFilter+" ORDER BY created_at DESC, id DESC",
		threadID,
	)
}

// DocumentMediaForThread yields every non-gallery part of a thread, newest first.
func (s *Store) DocumentMediaForThread(threadID int64) iter.Seq2[*MediaRecord, error] {
	return s.queryMedia(
		"SELECT "+mediaColumns+" FROM part WHERE thread_id = ? AND NOT "+galleryFilter+" ORDER BY created_at DESC, id DESC",
		threadID,
	)
}

// queryMedia runs the query lazily: nothing is read until the caller ranges.
func (s *Store) queryMedia(query string, args ...any) iter.Seq2[*MediaRecord, error] {
	return func(yield func(*MediaRecord, error) bool) {
		rows, err := s.db.Query(query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("store: query media: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				m         MediaRecord
				createdAt int64
			)
			if err := rows.Scan(&m.ID, &m.ThreadID, &m.MessageID, &m.ContentType, &m.Size, &m.Data, &createdAt); err != nil {
				yield(nil, fmt.Errorf("store: scan media: %w", err))
				return
			}
			m.CreatedAt = time.UnixMilli(createdAt)
			if !yield(&m, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("store: iterate media: %w", err))
		}
	}
}
