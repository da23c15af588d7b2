package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEnv(t *testing.T) {
	t.Setenv("X_A", "va")
	in := []byte("a: ${X_A:da}\nb: ${X_B:db}")
	out := resolveEnv(in)
	assert.Contains(t, string(out), "a: va")
	assert.Contains(t, string(out), "b: db")
}

func TestLoadConfig_YAML(t *testing.T) {
	tmp := t.TempDir()
	old, _ := os.Getwd()
	t.Cleanup(func() { _ = os.Chdir(old) })
	_ = os.Chdir(tmp)

	t.Setenv("X_API_TOKEN", "secret")
	yaml := `
port: "--port=9100/"
api:
  auth:
    token: ${X_API_TOKEN}
socket:
  namespaces:
    /chat:
      max_connections: 10
  ping_interval: 5s
app:
  base_url: ${X_APP_URL:http://app.local/boom}
  timeout: 2s
store:
  type: redis
  redis:
    addr: 127.0.0.1:6379
`
	file := filepath.Join(tmp, "boom.yaml")
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))

	cfg, path, err := LoadConfig("boom.yaml")
	require.NoError(t, err)
	realFile, _ := filepath.EvalSymlinks(file)
	realPath, _ := filepath.EvalSymlinks(path)
	assert.Equal(t, realFile, realPath)

	assert.Equal(t, ":9100", cfg.Addr())
	assert.Equal(t, "secret", cfg.API.Auth.Token)
	assert.Equal(t, "http://app.local/boom", cfg.App.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.App.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Socket.PingInterval)
	assert.Equal(t, 10, cfg.Socket.Namespaces["/chat"].MaxConnections)
	assert.Contains(t, cfg.Socket.Namespaces, "/")
	assert.Equal(t, "boom:sockets", cfg.Store.Redis.Prefix)
}

func TestLoadConfig_TOML(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "boom.toml")
	content := `
port = "9200"
devmode = true

[app]
base_url = "https://example.com/api/"

[store]
type = "db"
table = "live_sockets"

[store.database]
type = "sqlite"
dbname = ":memory:"
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	cfg, _, err := LoadConfig(file)
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "https://example.com/api/", cfg.App.BaseURL)
	assert.Equal(t, "live_sockets", cfg.Store.Table)
	assert.Equal(t, ":memory:", cfg.Store.Database.GetDSN())
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSetDefaults(t *testing.T) {
	var cfg BoomConfig
	SetDefaults(&cfg)
	assert.Equal(t, "9001", cfg.Port)
	assert.Equal(t, "/ws", cfg.Socket.Path)
	assert.Equal(t, "http://localhost/boom", cfg.App.BaseURL)
	assert.Equal(t, "noop", cfg.Store.Type)
	assert.Equal(t, "sockets", cfg.Store.Table)
	assert.Zero(t, cfg.App.Timeout)
	assert.NoError(t, Validate(&cfg))
}

func TestSanitizePort(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "9001", want: 9001},
		{in: "tcp://0.0.0.0:8080/", want: 8080},
		{in: " 80 ", want: 80},
		{in: "8", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "99999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SanitizePort(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetDSN(t *testing.T) {
	pg := DatabaseConfig{Type: "postgres", Host: "h", Port: 5432, User: "u", Password: "p", DBName: "d"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", pg.GetDSN())

	my := DatabaseConfig{Type: "mysql", Host: "h", Port: 3306, User: "u", Password: "p", DBName: "d"}
	assert.Contains(t, my.GetDSN(), "u:p@tcp(h:3306)/d?")
	assert.Contains(t, my.GetDSN(), "clientFoundRows=true")

	sqlite := DatabaseConfig{Type: "sqlite", DBName: filepath.Join(t.TempDir(), "data", "boom.db")}
	assert.Equal(t, sqlite.DBName, sqlite.GetDSN())
	_, err := os.Stat(filepath.Dir(sqlite.DBName))
	assert.NoError(t, err)

	assert.Empty(t, (&DatabaseConfig{Type: "oracle"}).GetDSN())
}
