//go:build integration

package avatar_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"dirsync/internal/directorysync/models"
	"dirsync/internal/directorysync/store/avatar"
	"dirsync/internal/directorysync/store/user"
	"dirsync/internal/platform/postgres"
	"dirsync/pkg/platform/sentinel"
	"dirsync/pkg/testutil/containers"
)

type PostgresAvatarSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	users    *user.PostgresStore
	store    *avatar.PostgresStore
	ctx      context.Context
}

func TestPostgresAvatarSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAvatarSuite))
}

func (s *PostgresAvatarSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(s.postgres.DSN))
	s.users = user.NewPostgres(s.postgres.DB)
	s.store = avatar.NewPostgres(s.postgres.DB, s.users)
	s.ctx = context.Background()
}

func (s *PostgresAvatarSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "user_avatars", "users"))
}

func (s *PostgresAvatarSuite) TestReplaceAvatar() {
	id, err := s.users.CreateAccount(s.ctx, models.NewAccount{Username: "jdoe", Email: "jdoe@example.org"})
	s.Require().NoError(err)

	s.Require().NoError(s.store.ReplaceAvatar(s.ctx, id, []byte{0x89, 'P', 'N', 'G'}, "image/png"))
	s.Require().NoError(s.store.ReplaceAvatar(s.ctx, id, []byte{0xff, 0xd8}, "image/jpeg"))

	got, err := s.store.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Equal([]byte{0xff, 0xd8}, got.Data)
	s.Equal("image/jpeg", got.ContentType)

	u, err := s.users.FindByID(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(models.AvatarOriginDirectory, u.AvatarOrigin)
}

func (s *PostgresAvatarSuite) TestUnknownUserRollsBack() {
	err := s.store.ReplaceAvatar(s.ctx, "00000000-0000-0000-0000-000000000000", []byte{0x01}, "application/octet-stream")
	s.Error(err)

	_, err = s.store.Get(s.ctx, "00000000-0000-0000-0000-000000000000")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
