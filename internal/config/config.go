// Package config loads the YAML configuration described in spec.md §6:
// database connection parameters, DHCP binds, and the default Server
// Identifier fallback.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"gopkg.in/yaml.v3"

	"github.com/dhcpsprout/dhcpsprout/internal/prometheus"
)

// DatabaseConfig holds PostgreSQL connection parameters, matching
// spec.md §6's "database.* connection parameters".
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Channel is the pub/sub channel name; defaults to "dhcp_control" when
	// empty, per spec.md §6.
	Channel string `yaml:"channel"`
}

// DSN renders d as a libpq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		d.Host, d.Port, d.Name, d.User, d.Password,
	)
}

// DHCPConfig holds the listener binds and the fallback Server Identifier,
// matching spec.md §6's "dhcp.binds" and "dhcp.default_server_addr".
type DHCPConfig struct {
	// Binds is a whitespace-separated host[:port] list, per spec.md §6.
	Binds string `yaml:"binds"`

	// DefaultServerAddr is used as the Server Identifier when a listener
	// binds the unspecified address.
	DefaultServerAddr string `yaml:"default_server_addr"`
}

// BindList splits DHCPConfig.Binds on whitespace.
func (d DHCPConfig) BindList() []string {
	return strings.Fields(d.Binds)
}

// Addr parses DefaultServerAddr, returning the zero netip.Addr if it is
// unset.
func (d DHCPConfig) Addr() (netip.Addr, error) {
	if d.DefaultServerAddr == "" {
		return netip.Addr{}, nil
	}

	return netip.ParseAddr(d.DefaultServerAddr)
}

// Config is the top-level configuration file shape.
type Config struct {
	Database   DatabaseConfig    `yaml:"database"`
	DHCP       DHCPConfig        `yaml:"dhcp"`
	Prometheus prometheus.Config `yaml:"prometheus"`
}

// Load reads and parses the YAML configuration file at path.
func Load(path string) (cfg Config, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Annotate(err, "config: reading %q: %w", path)
	}

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Annotate(err, "config: parsing %q: %w", path)
	}

	if len(cfg.DHCP.BindList()) == 0 {
		return cfg, fmt.Errorf("config: dhcp.binds: %w", errNoBinds)
	}

	return cfg, nil
}
