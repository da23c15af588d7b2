package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/amoylab/boom/internal/common/cnst"
)

type (
	// StoreConfig selects and configures the session store backend
	StoreConfig struct {
		Type     string           `yaml:"type" toml:"type"`   // db, redis, noop
		Table    string           `yaml:"table" toml:"table"` // session table (db) or key space (redis)
		Database DatabaseConfig   `yaml:"database" toml:"database"`
		Redis    RedisStoreConfig `yaml:"redis" toml:"redis"`
	}

	DatabaseConfig struct {
		Type     string `yaml:"type" toml:"type"`         // mysql, postgres, sqlite
		Host     string `yaml:"host" toml:"host"`         // localhost
		Port     int    `yaml:"port" toml:"port"`         // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user" toml:"user"`         // root (for mysql), postgres (for postgres)
		Password string `yaml:"password" toml:"password"` // password
		DBName   string `yaml:"dbname" toml:"dbname"`     // database name, file path for sqlite
		SSLMode  string `yaml:"sslmode" toml:"sslmode"`   // disable (for postgres)
	}

	// RedisStoreConfig represents the Redis configuration for the session store
	RedisStoreConfig struct {
		Addr     string `yaml:"addr" toml:"addr"`
		Username string `yaml:"username" toml:"username"`
		Password string `yaml:"password" toml:"password"`
		DB       int    `yaml:"db" toml:"db"`
		Prefix   string `yaml:"prefix" toml:"prefix"`
	}
)

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case cnst.DatabaseTypePostgres:
		return c.getPostgresDSN()
	case cnst.DatabaseTypeMySQL:
		return c.getMySQLDSN()
	case cnst.DatabaseTypeSQLite:
		if c.DBName != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(c.DBName), 0755); err != nil {
				panic(fmt.Errorf("failed to create directory for sqlite database: %w", err))
			}
		}
		return c.DBName
	default:
		return ""
	}
}

// getPostgresDSN returns PostgreSQL connection string
func (c *DatabaseConfig) getPostgresDSN() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslmode)
}

// getMySQLDSN returns MySQL connection string.
// clientFoundRows makes UPDATE report matched rows so an unchanged record is not mistaken for a missing one.
func (c *DatabaseConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
