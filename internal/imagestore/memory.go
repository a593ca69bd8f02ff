package imagestore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/muurk/photorelay/internal/logging"
	"github.com/muurk/photorelay/internal/relayerr"
	"go.uber.org/zap"
)

// MemoryStore keeps uploaded images in memory, keyed by a dense integer id
// shared by every session of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	next   atomic.Int64
	images map[int][]byte
}

// NewMemoryStore creates an empty in-memory store. The first id issued is 0.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{images: make(map[int][]byte)}
}

// Put stores a copy of data and returns its id.
func (s *MemoryStore) Put(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	// id assignment and insertion happen under the same lock so a reader
	// never observes an issued id without its bytes
	s.mu.Lock()
	id := int(s.next.Add(1) - 1)
	s.images[id] = buf
	s.mu.Unlock()

	logging.Debug("Image stored in memory",
		zap.Int("image_id", id),
		zap.Int("bytes", len(buf)),
	)
	return id, nil
}

// Get returns a copy of the image stored under id.
func (s *MemoryStore) Get(ctx context.Context, id int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.images[id]
	s.mu.RUnlock()
	if !ok {
		return nil, relayerr.NewNotFoundError(fmt.Sprintf("image %d not found", id))
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Len returns the number of stored images
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}
