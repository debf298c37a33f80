package avatar

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"dirsync/pkg/platform/sentinel"
)

// InMemoryStore keeps avatars in a map keyed by user ID.
type InMemoryStore struct {
	mu      sync.RWMutex
	avatars map[string]Avatar
	origins OriginMarker
}

// NewInMemoryStore returns a store that marks avatar origin through origins.
func NewInMemoryStore(origins OriginMarker) *InMemoryStore {
	return &InMemoryStore{
		avatars: make(map[string]Avatar),
		origins: origins,
	}
}

// ReplaceAvatar overwrites the user's avatar and marks it as coming from the directory.
func (s *InMemoryStore) ReplaceAvatar(ctx context.Context, userID string, data []byte, contentType string) error {
	if err := s.origins.SetAvatarOrigin(ctx, userID, originDirectory); err != nil {
		return fmt.Errorf("mark avatar origin: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatars[userID] = Avatar{UserID: userID, Data: slices.Clone(data), ContentType: contentType}
	return nil
}

// Get returns a copy of the user's avatar.
func (s *InMemoryStore) Get(_ context.Context, userID string) (*Avatar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.avatars[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	a.Data = slices.Clone(a.Data)
	return &a, nil
}
