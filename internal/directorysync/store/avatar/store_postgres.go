package avatar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dirsync/pkg/platform/sentinel"
	txcontext "dirsync/pkg/platform/tx"
)

// PostgresStore keeps avatars in user_avatars. The image upsert and the origin
// update share one transaction.
type PostgresStore struct {
	db      *sql.DB
	origins OriginMarker
}

// NewPostgres constructs a PostgreSQL-backed avatar store. origins must join the
// transaction carried on ctx.
func NewPostgres(db *sql.DB, origins OriginMarker) *PostgresStore {
	return &PostgresStore{db: db, origins: origins}
}

func (s *PostgresStore) ReplaceAvatar(ctx context.Context, userID string, data []byte, contentType string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return sentinel.ErrNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace avatar: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO user_avatars (user_id, data, content_type, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET data = EXCLUDED.data, content_type = EXCLUDED.content_type, updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, id, data, contentType); err != nil {
		return fmt.Errorf("upsert avatar: %w", err)
	}
	if err := s.origins.SetAvatarOrigin(txcontext.WithTx(ctx, tx), userID, originDirectory); err != nil {
		return fmt.Errorf("mark avatar origin: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace avatar: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Avatar, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, sentinel.ErrNotFound
	}
	a := Avatar{UserID: userID}
	err = s.db.QueryRowContext(ctx,
		`SELECT data, content_type FROM user_avatars WHERE user_id = $1`, id,
	).Scan(&a.Data, &a.ContentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get avatar: %w", err)
	}
	return &a, nil
}
