package service

import (
	"context"
	"net/http"

	"dirsync/internal/directorysync/identity"
	"dirsync/internal/directorysync/models"
	dErrors "dirsync/pkg/domain-errors"
)

var avatarAttributes = []string{"thumbnailPhoto", "jpegPhoto"}

// syncUser applies the record's data to user: mapped fields and identity link,
// then the username, then the avatar. Avatar problems are logged only.
func (s *Service) syncUser(ctx context.Context, settings *models.Settings, record *models.DirectoryRecord, user *models.LocalUser) error {
	if delta := s.mapper.ComputeDelta(record, user, settings); delta != nil {
		if delta.Name != nil {
			if err := s.users.SetDisplayName(ctx, user.ID, *delta.Name); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set display name")
			}
		}
		if rest := delta.WithoutName(); !rest.IsEmpty() {
			if err := s.users.ApplyDelta(ctx, user.ID, rest); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply user data")
			}
		}
		s.logger.DebugContext(ctx, "user data synced",
			"user_id", user.ID,
			"fields", delta.Paths(),
		)
	}

	if settings.UsernameField != "" {
		if username, ok := identity.ResolveUsername(record, settings); ok && username != user.Username {
			if err := s.users.SetUsername(ctx, user.ID, username); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set username")
			}
		}
	}

	if settings.SyncAvatar && s.avatars != nil {
		s.syncAvatar(ctx, record, user.ID)
	}
	return nil
}

func (s *Service) syncAvatar(ctx context.Context, record *models.DirectoryRecord, userID string) {
	var photo []byte
	for _, attr := range avatarAttributes {
		if photo = record.RawFirst(attr); len(photo) > 0 {
			break
		}
	}
	if len(photo) == 0 {
		return
	}

	if err := s.avatars.ReplaceAvatar(ctx, userID, photo, http.DetectContentType(photo)); err != nil {
		s.logger.WarnContext(ctx, "failed to sync avatar from directory",
			"user_id", userID,
			"error", err,
		)
	}
}
