// Package config loads and validates service configuration from the environment and
// an optional env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full service configuration. Sections are flattened onto env keys.
type Config struct {
	Server    Server    `mapstructure:",squash"`
	Log       Log       `mapstructure:",squash"`
	Database  Database  `mapstructure:",squash"`
	Redis     Redis     `mapstructure:",squash"`
	Kafka     Kafka     `mapstructure:",squash"`
	Directory Directory `mapstructure:",squash"`
	Sync      Sync      `mapstructure:",squash"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `mapstructure:"SERVER_ADDR"`
	AdminToken      string        `mapstructure:"ADMIN_API_TOKEN"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// Log selects the slog level and handler format ("json" or "text").
type Log struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

// Database is the Postgres host store. An empty URL selects the in-memory stores.
type Database struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool          `mapstructure:"DATABASE_MIGRATE_ON_START"`
}

// Redis backs the distributed run lock. An empty URL selects an in-process lock.
type Redis struct {
	URL          string        `mapstructure:"REDIS_URL"`
	PoolSize     int           `mapstructure:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `mapstructure:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"REDIS_WRITE_TIMEOUT"`
	LockTTL      time.Duration `mapstructure:"SYNC_LOCK_TTL"`
}

// Kafka carries audit events. Empty brokers select the in-memory audit store.
type Kafka struct {
	Brokers    string `mapstructure:"KAFKA_BROKERS"`
	AuditTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
}

// BrokerList returns the broker addresses from the comma-separated setting.
func (k Kafka) BrokerList() []string {
	if k.Brokers == "" {
		return nil
	}
	parts := strings.Split(k.Brokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Directory is the LDAP connection.
type Directory struct {
	URL          string        `mapstructure:"LDAP_URL"`
	BindDN       string        `mapstructure:"LDAP_BIND_DN"`
	BindPassword string        `mapstructure:"LDAP_BIND_PASSWORD"`
	BaseDN       string        `mapstructure:"LDAP_BASE_DN"`
	UserFilter   string        `mapstructure:"LDAP_USER_FILTER"`
	PageSize     uint32        `mapstructure:"LDAP_PAGE_SIZE"`
	Timeout      time.Duration `mapstructure:"LDAP_TIMEOUT"`
}

// Sync holds the raw sync settings; settings.Build turns them into models.Settings.
type Sync struct {
	Enabled                  bool   `mapstructure:"LDAP_SYNC_ENABLED"`
	UniqueIdentifierField    string `mapstructure:"LDAP_UNIQUE_IDENTIFIER_FIELD"`
	SearchField              string `mapstructure:"LDAP_USER_SEARCH_FIELD"`
	UsernameField            string `mapstructure:"LDAP_USERNAME_FIELD"`
	SlugifyUsernames         bool   `mapstructure:"LDAP_UTF8_NAMES_SLUGIFY"`
	SyncUserData             bool   `mapstructure:"LDAP_SYNC_USER_DATA"`
	SyncUserDataFieldMap     string `mapstructure:"LDAP_SYNC_USER_DATA_FIELDMAP"`
	SyncAvatar               bool   `mapstructure:"LDAP_SYNC_USER_AVATAR"`
	DefaultDomain            string `mapstructure:"LDAP_DEFAULT_DOMAIN"`
	MergeExistingUsers       bool   `mapstructure:"LDAP_MERGE_EXISTING_USERS"`
	BackgroundSync           bool   `mapstructure:"LDAP_BACKGROUND_SYNC"`
	BackgroundSyncInterval   string `mapstructure:"LDAP_BACKGROUND_SYNC_INTERVAL"`
	ImportNewUsers           bool   `mapstructure:"LDAP_BACKGROUND_SYNC_IMPORT_NEW_USERS"`
	KeepExistingUsersUpdated bool   `mapstructure:"LDAP_BACKGROUND_SYNC_KEEP_EXISTANT_USERS_UPDATED"`
}

// Load reads the env file at path (".env" when empty, missing file ignored), then
// builds and validates Config from the environment. Env vars override the file.
func Load(path string) (*Config, error) {
	v := newViper(path)
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound
	return decode(v)
}

// Watch re-reads the env file whenever it changes and hands the new Config to fn.
// Invalid updates are reported through onError and otherwise ignored.
func Watch(path string, fn func(*Config), onError func(error)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		fn(cfg)
	})
	v.WatchConfig()
	return nil
}

func newViper(path string) *viper.Viper {
	if path == "" {
		path = ".env"
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("ADMIN_API_TOKEN", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DATABASE_MIGRATE_ON_START", true)

	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")
	v.SetDefault("SYNC_LOCK_TTL", "1h")

	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "dirsync-audit")

	v.SetDefault("LDAP_URL", "")
	v.SetDefault("LDAP_BIND_DN", "")
	v.SetDefault("LDAP_BIND_PASSWORD", "")
	v.SetDefault("LDAP_BASE_DN", "")
	v.SetDefault("LDAP_USER_FILTER", "(objectClass=*)")
	v.SetDefault("LDAP_PAGE_SIZE", 250)
	v.SetDefault("LDAP_TIMEOUT", "10s")

	v.SetDefault("LDAP_SYNC_ENABLED", false)
	v.SetDefault("LDAP_UNIQUE_IDENTIFIER_FIELD", "objectGUID,ibm-entryUUID,GUID,dominoUNID,nsuniqueId,uidNumber")
	v.SetDefault("LDAP_USER_SEARCH_FIELD", "sAMAccountName")
	v.SetDefault("LDAP_USERNAME_FIELD", "sAMAccountName")
	v.SetDefault("LDAP_UTF8_NAMES_SLUGIFY", true)
	v.SetDefault("LDAP_SYNC_USER_DATA", false)
	v.SetDefault("LDAP_SYNC_USER_DATA_FIELDMAP", `{"cn":"name", "mail":"email"}`)
	v.SetDefault("LDAP_SYNC_USER_AVATAR", true)
	v.SetDefault("LDAP_DEFAULT_DOMAIN", "")
	v.SetDefault("LDAP_MERGE_EXISTING_USERS", false)
	v.SetDefault("LDAP_BACKGROUND_SYNC", false)
	v.SetDefault("LDAP_BACKGROUND_SYNC_INTERVAL", "Every 24 hours")
	v.SetDefault("LDAP_BACKGROUND_SYNC_IMPORT_NEW_USERS", true)
	v.SetDefault("LDAP_BACKGROUND_SYNC_KEEP_EXISTANT_USERS_UPDATED", true)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: SERVER_ADDR must be set")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	if c.Sync.Enabled && c.Directory.URL == "" {
		return errors.New("config: LDAP_URL must be set when LDAP_SYNC_ENABLED is true")
	}
	if c.Sync.BackgroundSync && strings.TrimSpace(c.Sync.BackgroundSyncInterval) == "" {
		return errors.New("config: LDAP_BACKGROUND_SYNC_INTERVAL must be set when LDAP_BACKGROUND_SYNC is true")
	}
	if c.Directory.PageSize == 0 {
		c.Directory.PageSize = 250
	}
	return nil
}
