package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

type object struct {
	data        []byte
	contentType string
}

// MemoryStore keeps previews in process memory and serves them under urlPrefix.
type MemoryStore struct {
	mu        sync.RWMutex
	objects   map[string]object
	urlPrefix string
	maxDim    int
	maxPixels int
}

func NewMemoryStore(urlPrefix string, maxDim, maxPixels int) *MemoryStore {
	return &MemoryStore{objects: make(map[string]object), urlPrefix: urlPrefix, maxDim: maxDim, maxPixels: maxPixels}
}

// Create implements sketch.PreviewStore
func (s *MemoryStore) Create(_ context.Context, file *sketch.File) (sketch.Preview, error) {
	data, ct, err := Thumbnail(file.Data, s.maxDim, s.maxPixels)
	if err != nil {
		return sketch.Preview{}, err
	}
	key := uuid.New().String()

	s.mu.Lock()
	s.objects[key] = object{data: data, contentType: ct}
	s.mu.Unlock()

	return sketch.Preview{Key: key, URL: s.urlPrefix + key}, nil
}

// Release implements sketch.PreviewStore
func (s *MemoryStore) Release(_ context.Context, p sketch.Preview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[p.Key]; !ok {
		return fmt.Errorf("preview not found: %s", p.Key)
	}
	delete(s.objects, p.Key)
	return nil
}

// Get returns the preview bytes and content type
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o.data, o.contentType, ok
}

// Len returns the number of held previews
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
