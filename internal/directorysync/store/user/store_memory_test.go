package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"dirsync/internal/directorysync/models"
	"dirsync/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	s.Run("creates an unlinked account with one unverified email", func() {
		id, err := s.store.CreateAccount(s.ctx, models.NewAccount{Username: "jdoe", Email: "jdoe@example.org"})
		s.Require().NoError(err)

		u, err := s.store.FindByID(s.ctx, id)
		s.Require().NoError(err)
		s.Equal("jdoe", u.Username)
		s.Equal([]models.EmailAddress{{Address: "jdoe@example.org"}}, u.Emails)
		s.False(u.LinkedToDirectory)
		s.Nil(u.StoredIdentity())

		byName, err := s.store.FindByUsername(s.ctx, "jdoe")
		s.Require().NoError(err)
		s.Equal(id, byName.ID)
	})

	s.Run("duplicate username conflicts", func() {
		_, err := s.store.CreateAccount(s.ctx, models.NewAccount{Username: "jdoe", Email: "other@example.org"})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("accounts without username never collide", func() {
		_, err := s.store.CreateAccount(s.ctx, models.NewAccount{Email: "a@example.org"})
		s.Require().NoError(err)
		_, err = s.store.CreateAccount(s.ctx, models.NewAccount{Email: "b@example.org"})
		s.Require().NoError(err)
	})

	s.Run("misses return ErrNotFound", func() {
		_, err := s.store.FindByID(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByDirectoryID(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.FindByUsername(s.ctx, "missing")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestApplyDelta() {
	id, err := s.store.CreateAccount(s.ctx, models.NewAccount{Username: "jdoe", Email: "jdoe@example.org"})
	s.Require().NoError(err)

	name := "Jane Doe"
	err = s.store.ApplyDelta(s.ctx, id, &models.UserDataDelta{
		Name:            &name,
		Emails:          []models.EmailAddress{{Address: "jane@example.org", Verified: true}},
		CustomFields:    map[string]string{"department": "Sales"},
		Identity:        &models.UniqueIdentity{Attribute: "entryUUID", Value: "abcd"},
		LinkToDirectory: true,
	})
	s.Require().NoError(err)

	u, err := s.store.FindByDirectoryID(s.ctx, "abcd")
	s.Require().NoError(err)
	s.Equal(id, u.ID)
	s.Equal("Jane Doe", u.Name)
	s.Equal("Sales", u.CustomFields["department"])
	s.True(u.LinkedToDirectory)
	s.Equal(&models.DirectoryLink{ID: "abcd", IDAttribute: "entryUUID"}, u.Directory)

	s.Run("custom fields merge", func() {
		s.Require().NoError(s.store.ApplyDelta(s.ctx, id, &models.UserDataDelta{
			CustomFields: map[string]string{"title": "Engineer"},
		}))
		u, err := s.store.FindByID(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(map[string]string{"department": "Sales", "title": "Engineer"}, u.CustomFields)
	})

	s.Run("identity already linked elsewhere conflicts", func() {
		other, err := s.store.CreateAccount(s.ctx, models.NewAccount{Username: "other", Email: "o@example.org"})
		s.Require().NoError(err)
		err = s.store.ApplyDelta(s.ctx, other, &models.UserDataDelta{
			Identity: &models.UniqueIdentity{Attribute: "entryUUID", Value: "abcd"},
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("returned users are copies", func() {
		u, err := s.store.FindByID(s.ctx, id)
		s.Require().NoError(err)
		u.CustomFields["department"] = "Mutated"
		u.Emails[0].Address = "mutated@example.org"

		again, err := s.store.FindByID(s.ctx, id)
		s.Require().NoError(err)
		s.Equal("Sales", again.CustomFields["department"])
		s.Equal("jane@example.org", again.Emails[0].Address)
	})
}

func (s *InMemoryStoreSuite) TestUsernameAndListing() {
	a, err := s.store.CreateAccount(s.ctx, models.NewAccount{Username: "b-user", Email: "b@example.org"})
	s.Require().NoError(err)
	b, err := s.store.CreateAccount(s.ctx, models.NewAccount{Username: "taken", Email: "t@example.org"})
	s.Require().NoError(err)

	s.ErrorIs(s.store.SetUsername(s.ctx, a, "taken"), sentinel.ErrConflict)
	s.Require().NoError(s.store.SetUsername(s.ctx, a, "a-user"))
	s.Require().NoError(s.store.SetDisplayName(s.ctx, a, "A User"))
	s.Require().NoError(s.store.SetAvatarOrigin(s.ctx, a, models.AvatarOriginDirectory))

	s.Require().NoError(s.store.ApplyDelta(s.ctx, b, &models.UserDataDelta{LinkToDirectory: true}))
	s.Require().NoError(s.store.ApplyDelta(s.ctx, a, &models.UserDataDelta{LinkToDirectory: true}))

	linked, err := s.store.ListDirectoryUsers(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(linked, 2)
	s.Equal("a-user", linked[0].Username)
	s.Equal("A User", linked[0].Name)
	s.Equal(models.AvatarOriginDirectory, linked[0].AvatarOrigin)
	s.Equal("taken", linked[1].Username)

	s.ErrorIs(s.store.SetDisplayName(s.ctx, "missing", "x"), sentinel.ErrNotFound)
}
