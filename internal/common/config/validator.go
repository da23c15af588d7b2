package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/amoylab/boom/internal/common/cnst"
)

// Location represents a configuration location
type Location struct {
	Field string
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Message   string
	Locations []Location
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if len(e.Locations) > 0 {
		sb.WriteString("\n\n")
	}
	for _, loc := range e.Locations {
		sb.WriteString("--> ")
		sb.WriteString(loc.Field)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Validate checks a configuration after defaults have been applied
func Validate(cfg *BoomConfig) error {
	var (
		msgs   []string
		fields []Location
	)
	fail := func(field, format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
		fields = append(fields, Location{Field: field})
	}

	if _, err := SanitizePort(cfg.Port); err != nil {
		fail("port", "%v", err)
	}

	if cfg.Secure && (cfg.SSL.CertPath == "" || cfg.SSL.KeyPath == "") {
		fail("ssl", "%v", cnst.ErrMissingTLSPaths)
	}

	if !strings.HasPrefix(cfg.Socket.Path, "/") {
		fail("socket.path", "socket path %q must start with /", cfg.Socket.Path)
	}
	for name := range cfg.Socket.Namespaces {
		if !strings.HasPrefix(name, "/") {
			fail("socket.namespaces", "namespace %q must start with /", name)
		}
	}

	if u, err := url.Parse(cfg.App.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		fail("app.base_url", "app base url %q is not an absolute url", cfg.App.BaseURL)
	}

	switch cnst.StoreType(cfg.Store.Type) {
	case cnst.StoreTypeNoop, cnst.StoreTypeMemcached:
	case cnst.StoreTypeRedis:
		if cfg.Store.Redis.Addr == "" {
			fail("store.redis.addr", "redis address is required")
		}
	case cnst.StoreTypeDB:
		switch cfg.Store.Database.Type {
		case cnst.DatabaseTypeMySQL, cnst.DatabaseTypePostgres, cnst.DatabaseTypeSQLite:
		default:
			fail("store.database.type", "%v: %q", cnst.ErrInvalidDatabaseType, cfg.Store.Database.Type)
		}
	default:
		fail("store.type", "%v: %q", cnst.ErrInvalidStoreType, cfg.Store.Type)
	}

	if len(msgs) == 0 {
		return nil
	}
	return &ValidationError{
		Message:   "invalid configuration: " + strings.Join(msgs, "; "),
		Locations: fields,
	}
}
