package blob

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestPutTakeOnce(t *testing.T) {
	p := NewProvider()
	data := []byte("avatar")
	uri := p.Put(data)
	if !strings.HasPrefix(uri, "content://blob/single/") {
		t.Fatalf("unexpected uri %q", uri)
	}

	// Mutating the caller's slice must not affect the staged copy.
	data[0] = 'X'

	got, err := p.Take(uri)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "avatar" {
		t.Fatalf("got %q, want %q", got, "avatar")
	}
	if _, err := p.Take(uri); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second take: got %v, want ErrNotFound", err)
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d, want 0", p.Len())
	}
}

func TestTakeUnknown(t *testing.T) {
	p := NewProvider()
	for _, uri := range []string{"", "file:///etc/passwd", "content://blob/single/nope"} {
		if _, err := p.Take(uri); !errors.Is(err, ErrNotFound) {
			t.Errorf("Take(%q): got %v, want ErrNotFound", uri, err)
		}
	}
}

func TestDrop(t *testing.T) {
	p := NewProvider()
	uri := p.Put([]byte("avatar"))
	p.Drop(uri)
	if p.Len() != 0 {
		t.Fatalf("Len = %d, want 0", p.Len())
	}
	if _, err := p.Take(uri); !errors.Is(err, ErrNotFound) {
		t.Fatalf("take after drop: got %v, want ErrNotFound", err)
	}
	// Dropping twice or an unknown uri is harmless.
	p.Drop(uri)
	p.Drop("file:///etc/passwd")
}

func TestConcurrentPutTake(t *testing.T) {
	p := NewProvider()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uri := p.Put([]byte{byte(i)})
			if _, err := p.Take(uri); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if p.Len() != 0 {
		t.Fatalf("Len = %d, want 0", p.Len())
	}
}
