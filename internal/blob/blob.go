// Package blob stages in-memory content behind single-use references.
//
// A reference can be resolved exactly once; the content is dropped as soon as
// it has been taken.
package blob

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const uriPrefix = "content://blob/single/"

// ErrNotFound is returned when a reference is unknown or already taken.
var ErrNotFound = errors.New("blob: not found")

// Provider holds staged content until it is taken.
type Provider struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewProvider returns an empty Provider.
func NewProvider() *Provider {
	return &Provider{blobs: make(map[string][]byte)}
}

// Put stages a copy of data and returns its single-use URI.
func (p *Provider) Put(data []byte) string {
	id := uuid.NewString()
	p.mu.Lock()
	p.blobs[id] = append([]byte(nil), data...)
	p.mu.Unlock()
	return uriPrefix + id
}

// Take returns the content behind uri and forgets it.
func (p *Provider) Take(uri string) ([]byte, error) {
	id, ok := strings.CutPrefix(uri, uriPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	delete(p.blobs, id)
	return data, nil
}

// Drop forgets the content behind uri if it has not been taken.
func (p *Provider) Drop(uri string) {
	id, ok := strings.CutPrefix(uri, uriPrefix)
	if !ok {
		return
	}
	p.mu.Lock()
	delete(p.blobs, id)
	p.mu.Unlock()
}

// Len returns the number of staged blobs not yet taken.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.blobs)
}
