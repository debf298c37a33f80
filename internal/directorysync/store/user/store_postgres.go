package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"dirsync/internal/directorysync/models"
	"dirsync/pkg/platform/sentinel"
	txcontext "dirsync/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists users in the users table.
// This store is pure I/O; deciding what to change belongs in the service.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, username, name, emails, custom_fields, directory_id,
	directory_id_attribute, linked_to_directory, avatar_origin`

func (s *PostgresStore) FindByDirectoryID(ctx context.Context, directoryID string) (*models.LocalUser, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE directory_id = $1`
	return s.findOne(ctx, "find user by directory id", query, directoryID)
}

func (s *PostgresStore) FindByUsername(ctx context.Context, username string) (*models.LocalUser, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return s.findOne(ctx, "find user by username", query, username)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.LocalUser, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, sentinel.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.findOne(ctx, "find user by id", query, parsed)
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account models.NewAccount) (string, error) {
	emails, err := json.Marshal([]models.EmailAddress{{Address: account.Email}})
	if err != nil {
		return "", fmt.Errorf("marshal emails: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO users (id, username, emails, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW(), NOW())
	`
	if _, err := s.db.ExecContext(ctx, query, id, nullable(account.Username), string(emails)); err != nil {
		return "", mapWriteError("create account", err)
	}
	return id.String(), nil
}

// ApplyDelta issues one UPDATE touching only the columns the delta carries.
// Custom fields are merged into the existing JSON object.
func (s *PostgresStore) ApplyDelta(ctx context.Context, userID string, delta *models.UserDataDelta) error {
	if delta.IsEmpty() {
		return nil
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return sentinel.ErrNotFound
	}

	var (
		sets []string
		args []any
	)
	set := func(expr string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if delta.Name != nil {
		set("name = $%d", *delta.Name)
	}
	if delta.Emails != nil {
		emails, err := json.Marshal(delta.Emails)
		if err != nil {
			return fmt.Errorf("marshal emails: %w", err)
		}
		set("emails = $%d::jsonb", string(emails))
	}
	if len(delta.CustomFields) > 0 {
		fields, err := json.Marshal(delta.CustomFields)
		if err != nil {
			return fmt.Errorf("marshal custom fields: %w", err)
		}
		set("custom_fields = custom_fields || $%d::jsonb", string(fields))
	}
	if delta.Identity != nil {
		set("directory_id = $%d", delta.Identity.Value)
		set("directory_id_attribute = $%d", delta.Identity.Attribute)
	}
	if delta.LinkToDirectory {
		set("linked_to_directory = $%d", true)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	return s.execOne(ctx, "apply user delta", query, args...)
}

func (s *PostgresStore) SetDisplayName(ctx context.Context, userID, name string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return sentinel.ErrNotFound
	}
	return s.execOne(ctx, "set display name",
		`UPDATE users SET name = $1, updated_at = NOW() WHERE id = $2`, name, id)
}

func (s *PostgresStore) SetUsername(ctx context.Context, userID, username string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return sentinel.ErrNotFound
	}
	return s.execOne(ctx, "set username",
		`UPDATE users SET username = $1, updated_at = NOW() WHERE id = $2`, nullable(username), id)
}

// SetAvatarOrigin records where the user's avatar came from.
func (s *PostgresStore) SetAvatarOrigin(ctx context.Context, userID, origin string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return sentinel.ErrNotFound
	}
	return s.execOne(ctx, "set avatar origin",
		`UPDATE users SET avatar_origin = $1, updated_at = NOW() WHERE id = $2`, origin, id)
}

func (s *PostgresStore) ListDirectoryUsers(ctx context.Context) ([]*models.LocalUser, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE linked_to_directory ORDER BY username`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}
	defer rows.Close()

	var users []*models.LocalUser
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("list directory users: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list directory users: %w", err)
	}
	return users, nil
}

func (s *PostgresStore) findOne(ctx context.Context, op, query string, arg any) (*models.LocalUser, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer joins the caller's transaction when one is carried on ctx.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteError(op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.LocalUser, error) {
	var (
		u            models.LocalUser
		username     sql.NullString
		name         sql.NullString
		emails       []byte
		customFields []byte
		directoryID  sql.NullString
		idAttribute  sql.NullString
		avatarOrigin sql.NullString
	)
	if err := row.Scan(&u.ID, &username, &name, &emails, &customFields, &directoryID,
		&idAttribute, &u.LinkedToDirectory, &avatarOrigin); err != nil {
		return nil, err
	}
	u.Username = username.String
	u.Name = name.String
	u.AvatarOrigin = avatarOrigin.String
	if len(emails) > 0 {
		if err := json.Unmarshal(emails, &u.Emails); err != nil {
			return nil, fmt.Errorf("decode emails: %w", err)
		}
	}
	if len(customFields) > 0 {
		if err := json.Unmarshal(customFields, &u.CustomFields); err != nil {
			return nil, fmt.Errorf("decode custom fields: %w", err)
		}
	}
	if directoryID.Valid {
		u.Directory = &models.DirectoryLink{ID: directoryID.String, IDAttribute: idAttribute.String}
	}
	return &u, nil
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
