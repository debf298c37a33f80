// Package directory reads user entries from an LDAP directory.
package directory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"dirsync/internal/directorysync/models"
	"dirsync/internal/directorysync/service"
	"dirsync/internal/platform/config"
)

const (
	defaultUserFilter = "(objectClass=*)"
	defaultPageSize   = 250
)

// conn is the part of *ldap.Conn a session uses.
type conn interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// SettingsSource supplies the identity and search fields for each new session.
type SettingsSource interface {
	Load() *models.Settings
}

// Client dials and binds one LDAP connection per session.
type Client struct {
	cfg      config.Directory
	settings SettingsSource
	logger   *slog.Logger
	dial     func(ctx context.Context) (conn, error)
}

type Option func(c *Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a Client for the configured directory.
func NewClient(cfg config.Directory, settings SettingsSource, opts ...Option) *Client {
	if cfg.PageSize == 0 {
		cfg.PageSize = defaultPageSize
	}
	c := &Client{cfg: cfg, settings: settings}
	c.dial = c.dialAndBind
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Connect opens a bound session. The session snapshots the current search and
// identity fields.
func (c *Client) Connect(ctx context.Context) (service.DirectorySession, error) {
	lc, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	s := c.settings.Load()
	return &Session{
		conn:         lc,
		baseDN:       c.cfg.BaseDN,
		userFilter:   normalizeFilter(c.cfg.UserFilter),
		pageSize:     c.cfg.PageSize,
		searchFields: s.SearchFields,
		attributes:   requestedAttributes(s),
		logger:       c.logger,
	}, nil
}

func (c *Client) dialAndBind(ctx context.Context) (conn, error) {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	lc, err := ldap.DialURL(c.cfg.URL, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("dial directory: %w", err)
	}
	lc.SetTimeout(timeout)

	if c.cfg.BindDN != "" {
		if err := lc.Bind(c.cfg.BindDN, c.cfg.BindPassword); err != nil {
			_ = lc.Close()
			return nil, fmt.Errorf("bind directory as %s: %w", c.cfg.BindDN, err)
		}
	}
	c.logger.DebugContext(ctx, "directory connection established", "url", c.cfg.URL)
	return lc, nil
}

// requestedAttributes asks for all user attributes plus the identity candidates,
// which are often operational (entryUUID, nsUniqueId).
func requestedAttributes(s *models.Settings) []string {
	attrs := []string{"*"}
	for _, field := range s.IdentityCandidates() {
		if field != "*" {
			attrs = append(attrs, field)
		}
	}
	return attrs
}

func normalizeFilter(filter string) string {
	filter = strings.TrimSpace(filter)
	switch {
	case filter == "":
		return defaultUserFilter
	case strings.HasPrefix(filter, "("):
		return filter
	default:
		return "(" + filter + ")"
	}
}
