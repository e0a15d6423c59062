// Package memory keeps capture records and media in process memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Object is one stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// BlobStore stores media in-memory and returns URLs under a base URL.
type BlobStore struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

// NewBlobStore creates an in-memory blob store. URLs are baseURL + "/" + path, or
// memory://path when baseURL is empty.
func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

// PutObject copies data and returns the object's URL.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}

	s.mu.Lock()
	s.objects[path] = Object{ContentType: contentType, Data: byteData}
	s.mu.Unlock()

	if s.baseURL == "" {
		return "memory://" + path, nil
	}
	return s.baseURL + "/" + path, nil
}

// Get returns a stored object.
func (s *BlobStore) Get(path string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[strings.TrimLeft(path, "/")]
	return obj, ok
}

// Len reports how many objects are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
