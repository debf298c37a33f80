// Package avatar stores user avatars copied from the directory.
package avatar

import (
	"context"

	"dirsync/internal/directorysync/models"
)

// Avatar is one stored image.
type Avatar struct {
	UserID      string
	Data        []byte
	ContentType string
}

// OriginMarker records where a user's avatar came from. The user stores implement it.
type OriginMarker interface {
	SetAvatarOrigin(ctx context.Context, userID, origin string) error
}

const originDirectory = models.AvatarOriginDirectory
