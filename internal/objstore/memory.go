package objstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"
)

type memoryConfig struct {
	BaseURL string `json:"base_url"`
}

// MemoryStore keeps blobs in process memory. It backs local development
// and tests; the URLs it mints are only meaningful to itself.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

func init() {
	Register("memory", createMemoryStore)
}

func createMemoryStore(args interface{}) (Store, error) {
	cfg := &memoryConfig{}
	if args != nil {
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
	}
	store := NewMemory()
	store.baseURL = cfg.BaseURL
	return store, nil
}

func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), baseURL: "memory://blobs"}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_ = ctx
	if key == "" {
		return fmt.Errorf("object key is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("short read: got %d bytes, want %d", len(data), size)
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PresignedGetURL(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	_ = ctx
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object not found: %s", key)
	}
	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s/%s?filename=%s&expires=%d",
		strings.TrimSuffix(s.baseURL, "/"), key, url.QueryEscape(filename), expires), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Has reports whether a blob is still present; test hook.
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
