package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"dirsync/internal/directorysync/mapper"
	"dirsync/internal/directorysync/metrics"
	"dirsync/internal/directorysync/models"
	audit "dirsync/pkg/platform/audit"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks dirsync/internal/directorysync/service UserStore,AvatarStore,AuditPublisher

// DirectoryClient opens sessions against the directory.
type DirectoryClient interface {
	Connect(ctx context.Context) (DirectorySession, error)
}

// DirectorySession is one bound connection. Lookups return sentinel.ErrNotFound on miss.
type DirectorySession interface {
	SearchAll(ctx context.Context, fn func(page []*models.DirectoryRecord) error) error
	GetByID(ctx context.Context, id, attribute string) (*models.DirectoryRecord, error)
	GetByUsername(ctx context.Context, username string) (*models.DirectoryRecord, error)
	Close() error
}

// UserStore is the host application's user store. Finds return sentinel.ErrNotFound.
type UserStore interface {
	FindByDirectoryID(ctx context.Context, directoryID string) (*models.LocalUser, error)
	FindByUsername(ctx context.Context, username string) (*models.LocalUser, error)
	FindByID(ctx context.Context, id string) (*models.LocalUser, error)
	CreateAccount(ctx context.Context, account models.NewAccount) (string, error)
	ApplyDelta(ctx context.Context, userID string, delta *models.UserDataDelta) error
	SetDisplayName(ctx context.Context, userID, name string) error
	SetUsername(ctx context.Context, userID, username string) error
	ListDirectoryUsers(ctx context.Context) ([]*models.LocalUser, error)
}

// AvatarStore replaces a user's avatar and marks its origin.
type AvatarStore interface {
	ReplaceAvatar(ctx context.Context, userID string, data []byte, contentType string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service reconciles single directory records against the host user store.
type Service struct {
	users          UserStore
	avatars        AvatarStore
	mapper         *mapper.Mapper
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAvatarStore enables avatar sync. Without it avatar settings are ignored.
func WithAvatarStore(avatars AvatarStore) Option {
	return func(s *Service) {
		s.avatars = avatars
	}
}

// New constructs a Service.
func New(users UserStore, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	s := &Service{users: users}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.mapper = mapper.New(s.logger)
	return s, nil
}
