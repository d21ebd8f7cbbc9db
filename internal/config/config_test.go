package config_test

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcpsprout/dhcpsprout/internal/config"
)

const sampleYAML = `
database:
  host: localhost
  port: 5432
  name: dhcpsprout
  user: dhcpsprout
  password: secret
  channel: dhcp_control
dhcp:
  binds: "0.0.0.0:67 10.0.0.2:67"
  default_server_addr: "10.0.0.2"
prometheus:
  enabled: true
  bind_host: 127.0.0.1
  bind_port: 9090
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, []string{"0.0.0.0:67", "10.0.0.2:67"}, cfg.DHCP.BindList())

	addr, err := cfg.DHCP.Addr()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), addr)

	assert.True(t, cfg.Prometheus.Enabled)
	assert.Equal(t, 9090, cfg.Prometheus.BindPort)
}

func TestLoad_NoBinds(t *testing.T) {
	path := writeConfig(t, "dhcp:\n  binds: \"\"\n")

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := config.DatabaseConfig{Host: "db", Port: 5432, Name: "n", User: "u", Password: "p"}
	assert.Contains(t, d.DSN(), "host=db")
	assert.Contains(t, d.DSN(), "dbname=n")
}
