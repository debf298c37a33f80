package user

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"dirsync/internal/directorysync/models"
	"dirsync/pkg/platform/sentinel"
)

// InMemory is a map-backed user store for development and tests.
// Every read returns a copy so callers cannot mutate stored users.
type InMemory struct {
	mu    sync.RWMutex
	users map[string]*models.LocalUser
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[string]*models.LocalUser)}
}

// Save inserts or replaces a user as-is. Used to seed local accounts.
func (s *InMemory) Save(_ context.Context, user *models.LocalUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if other := s.byUsername(user.Username); other != nil && other.ID != user.ID {
		return sentinel.ErrConflict
	}
	s.users[user.ID] = clone(user)
	return nil
}

func (s *InMemory) FindByDirectoryID(_ context.Context, directoryID string) (*models.LocalUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Directory != nil && u.Directory.ID == directoryID {
			return clone(u), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByUsername(_ context.Context, username string) (*models.LocalUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u := s.byUsername(username); u != nil {
		return clone(u), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByID(_ context.Context, id string) (*models.LocalUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return clone(u), nil
	}
	return nil, sentinel.ErrNotFound
}

// CreateAccount adds an unlinked account with one unverified email.
func (s *InMemory) CreateAccount(_ context.Context, account models.NewAccount) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byUsername(account.Username) != nil {
		return "", sentinel.ErrConflict
	}
	id := uuid.NewString()
	s.users[id] = &models.LocalUser{
		ID:       id,
		Username: account.Username,
		Emails:   []models.EmailAddress{{Address: account.Email}},
	}
	return id, nil
}

func (s *InMemory) ApplyDelta(_ context.Context, userID string, delta *models.UserDataDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if delta.Identity != nil {
		for _, other := range s.users {
			if other.ID != userID && other.Directory != nil && other.Directory.ID == delta.Identity.Value {
				return sentinel.ErrConflict
			}
		}
		u.Directory = &models.DirectoryLink{ID: delta.Identity.Value, IDAttribute: delta.Identity.Attribute}
	}
	if delta.Name != nil {
		u.Name = *delta.Name
	}
	if delta.Emails != nil {
		u.Emails = slices.Clone(delta.Emails)
	}
	if len(delta.CustomFields) > 0 {
		if u.CustomFields == nil {
			u.CustomFields = make(map[string]string, len(delta.CustomFields))
		}
		maps.Copy(u.CustomFields, delta.CustomFields)
	}
	if delta.LinkToDirectory {
		u.LinkedToDirectory = true
	}
	return nil
}

func (s *InMemory) SetDisplayName(_ context.Context, userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.Name = name
	return nil
}

func (s *InMemory) SetUsername(_ context.Context, userID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if other := s.byUsername(username); other != nil && other.ID != userID {
		return sentinel.ErrConflict
	}
	u.Username = username
	return nil
}

// SetAvatarOrigin records where the user's avatar came from.
func (s *InMemory) SetAvatarOrigin(_ context.Context, userID, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.AvatarOrigin = origin
	return nil
}

// ListDirectoryUsers returns linked users ordered by username.
func (s *InMemory) ListDirectoryUsers(_ context.Context) ([]*models.LocalUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LocalUser
	for _, u := range s.users {
		if u.LinkedToDirectory {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// byUsername requires the lock. Empty usernames never collide.
func (s *InMemory) byUsername(username string) *models.LocalUser {
	if username == "" {
		return nil
	}
	for _, u := range s.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func clone(u *models.LocalUser) *models.LocalUser {
	out := *u
	out.Emails = slices.Clone(u.Emails)
	out.CustomFields = maps.Clone(u.CustomFields)
	if u.Directory != nil {
		link := *u.Directory
		out.Directory = &link
	}
	return &out
}
