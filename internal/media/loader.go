// Package media lists the attachments shown in media galleries.
package media

import (
	"errors"
	"fmt"
	"iter"

	"github.com/gwillem/signal-groups/internal/address"
	"github.com/gwillem/signal-groups/internal/store"
)

// ErrInvalidMediaType is returned for a type filter other than image or video.
var ErrInvalidMediaType = errors.New("media: invalid media type")

// Global type filters. Any negative value selects conversation mode.
const (
	TypeImage = 0
	TypeVideo = 1
	NoType    = -1
)

var typeNames = map[int]string{
	TypeImage: "image",
	TypeVideo: "video",
}

// Source is the read-only media query surface.
type Source interface {
	ThreadIDFor(recipient address.Address) (int64, error)
	MediaByMimeType(kind string) iter.Seq2[*store.MediaRecord, error]
	GalleryMediaForThread(threadID int64) iter.Seq2[*store.MediaRecord, error]
	DocumentMediaForThread(threadID int64) iter.Seq2[*store.MediaRecord, error]
}

// Query selects either every medium of a type across conversations
// (TypeID >= 0) or the gallery or documents of one conversation.
type Query struct {
	Address address.Address
	Gallery bool
	TypeID  int
}

// Loader resolves queries against a Source.
type Loader struct {
	src Source
}

// NewLoader returns a Loader reading from src.
func NewLoader(src Source) *Loader {
	return &Loader{src: src}
}

// Load returns the lazily evaluated records matching q.
func (l *Loader) Load(q Query) (iter.Seq2[*store.MediaRecord, error], error) {
	if q.TypeID >= 0 {
		kind, ok := typeNames[q.TypeID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrInvalidMediaType, q.TypeID)
		}
		return l.src.MediaByMimeType(kind), nil
	}

	if q.Address.IsZero() {
		return nil, fmt.Errorf("media: conversation query without address")
	}
	threadID, err := l.src.ThreadIDFor(q.Address)
	if err != nil {
		return nil, fmt.Errorf("media: thread for %s: %w", q.Address, err)
	}
	if q.Gallery {
		return l.src.GalleryMediaForThread(threadID), nil
	}
	return l.src.DocumentMediaForThread(threadID), nil
}
