// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file; anything still unset
// takes its default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can say "1.5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

const (
	defaultHTTPAddr          = ":8081"
	defaultLogLevel          = "info"
	defaultPrimeRate         = 50
	defaultPingTimeout       = time.Second
	defaultCommandTimeout    = 3 * time.Second
	defaultListenWindow      = 1200 * time.Millisecond
	maxListenWindow          = 1500 * time.Millisecond
	defaultDescriptorTimeout = time.Second
	defaultCacheMaxAge       = 30 * time.Second
	defaultOfflinePasses     = 3
	defaultMaxPageSize       = 100
	defaultEnrichWorkers     = 8
	defaultNameTimeout       = 750 * time.Millisecond
	defaultMaxRuntime        = 30 * time.Second
	defaultPreset            = "normal"
	defaultSNMPCommunity     = "public"
	defaultSNMPVersion       = "2c"
)

// DefaultDrivers is the driver set used when DRIVERS is unset. nmap is opt-in.
var DefaultDrivers = []string{"arp", "dhcp", "ssdp", "mdns"}

var knownDrivers = map[string]bool{"arp": true, "dhcp": true, "ssdp": true, "mdns": true, "nmap": true}

type SNMPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Community string `yaml:"community"`
	Version   string `yaml:"version"`
}

type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`

	ExtraCIDRs []string `yaml:"extra_cidrs"`
	PrimeRate  *float64 `yaml:"prime_rate"`
	Drivers    []string `yaml:"drivers"`
	DNSServers []string `yaml:"dns_servers"`

	PingTimeout       Duration `yaml:"ping_timeout"`
	CommandTimeout    Duration `yaml:"command_timeout"`
	SSDPWindow        Duration `yaml:"ssdp_window"`
	MDNSWindow        Duration `yaml:"mdns_window"`
	DescriptorTimeout Duration `yaml:"descriptor_timeout"`

	SNMP SNMPConfig `yaml:"snmp"`

	CacheMaxAge        Duration `yaml:"cache_max_age"`
	OfflineAfterPasses int      `yaml:"offline_after_passes"`
	MaxPageSize        int      `yaml:"max_page_size"`

	DiscoveryInterval   Duration `yaml:"discovery_interval"`
	DiscoveryPreset     string   `yaml:"discovery_preset"`
	DiscoveryMaxRuntime Duration `yaml:"discovery_max_runtime"`

	EnrichWorkers int      `yaml:"enrich_workers"`
	NameTimeout   Duration `yaml:"name_timeout"`
}

// Load reads the file at path (skipped when path is empty), applies
// environment overrides through getenv, then defaults. Invalid environment
// values are ignored and reported as warnings; a missing or malformed file is
// an error.
func Load(path string, getenv func(string) string) (Config, []string, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, nil, fmt.Errorf("parse config: %w", err)
		}
	}

	var warnings []string
	warnings = append(warnings, cfg.applyEnv(getenv)...)
	warnings = append(warnings, cfg.applyDefaults()...)
	return cfg, warnings, nil
}

func (c *Config) applyEnv(getenv func(string) string) []string {
	var warnings []string
	warn := func(key, val string, err error) {
		warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: %v", key, val, err))
	}

	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = splitList(v)
		}
	}
	dur := func(key string, dst *Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = Duration(d)
	}
	integer := func(key string, dst *int) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = n
	}

	str("HTTP_ADDR", &c.HTTPAddr)
	str("LOG_LEVEL", &c.LogLevel)
	list("EXTRA_CIDRS", &c.ExtraCIDRs)
	list("DRIVERS", &c.Drivers)
	list("DNS_SERVERS", &c.DNSServers)
	if v := strings.TrimSpace(getenv("PRIME_RATE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err != nil {
			warn("PRIME_RATE", v, err)
		} else {
			c.PrimeRate = &f
		}
	}
	dur("PING_TIMEOUT", &c.PingTimeout)
	dur("COMMAND_TIMEOUT", &c.CommandTimeout)
	dur("SSDP_WINDOW", &c.SSDPWindow)
	dur("MDNS_WINDOW", &c.MDNSWindow)
	dur("DESCRIPTOR_TIMEOUT", &c.DescriptorTimeout)
	if v := strings.TrimSpace(getenv("SNMP_ENABLED")); v != "" {
		if b, err := strconv.ParseBool(v); err != nil {
			warn("SNMP_ENABLED", v, err)
		} else {
			c.SNMP.Enabled = b
		}
	}
	str("SNMP_COMMUNITY", &c.SNMP.Community)
	str("SNMP_VERSION", &c.SNMP.Version)
	dur("CACHE_MAX_AGE", &c.CacheMaxAge)
	integer("OFFLINE_AFTER_PASSES", &c.OfflineAfterPasses)
	integer("MAX_PAGE_SIZE", &c.MaxPageSize)
	dur("DISCOVERY_INTERVAL", &c.DiscoveryInterval)
	str("DISCOVERY_PRESET", &c.DiscoveryPreset)
	dur("DISCOVERY_MAX_RUNTIME", &c.DiscoveryMaxRuntime)
	integer("ENRICH_WORKERS", &c.EnrichWorkers)
	dur("NAME_TIMEOUT", &c.NameTimeout)
	return warnings
}

func (c *Config) applyDefaults() []string {
	var warnings []string

	if c.HTTPAddr == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.PrimeRate == nil {
		r := float64(defaultPrimeRate)
		c.PrimeRate = &r
	}

	drivers := make([]string, 0, len(c.Drivers))
	for _, d := range c.Drivers {
		d = strings.ToLower(strings.TrimSpace(d))
		if !knownDrivers[d] {
			warnings = append(warnings, fmt.Sprintf("ignoring unknown driver %q", d))
			continue
		}
		drivers = append(drivers, d)
	}
	if len(drivers) == 0 {
		drivers = append(drivers, DefaultDrivers...)
	}
	c.Drivers = drivers

	positive(&c.PingTimeout, defaultPingTimeout)
	positive(&c.CommandTimeout, defaultCommandTimeout)
	positive(&c.SSDPWindow, defaultListenWindow)
	positive(&c.MDNSWindow, defaultListenWindow)
	positive(&c.DescriptorTimeout, defaultDescriptorTimeout)
	if c.SSDPWindow.Duration() > maxListenWindow {
		c.SSDPWindow = Duration(maxListenWindow)
	}
	if c.MDNSWindow.Duration() > maxListenWindow {
		c.MDNSWindow = Duration(maxListenWindow)
	}
	if c.DescriptorTimeout.Duration() > time.Second {
		c.DescriptorTimeout = Duration(time.Second)
	}

	if c.SNMP.Community == "" {
		c.SNMP.Community = defaultSNMPCommunity
	}
	if c.SNMP.Version == "" {
		c.SNMP.Version = defaultSNMPVersion
	}

	positive(&c.CacheMaxAge, defaultCacheMaxAge)
	if c.OfflineAfterPasses <= 0 {
		c.OfflineAfterPasses = defaultOfflinePasses
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = defaultMaxPageSize
	}
	if c.DiscoveryInterval < 0 {
		c.DiscoveryInterval = 0
	}
	if c.DiscoveryPreset == "" {
		c.DiscoveryPreset = defaultPreset
	}
	positive(&c.DiscoveryMaxRuntime, defaultMaxRuntime)
	if c.EnrichWorkers <= 0 {
		c.EnrichWorkers = defaultEnrichWorkers
	}
	positive(&c.NameTimeout, defaultNameTimeout)
	return warnings
}

// HasDriver reports whether name is enabled.
func (c Config) HasDriver(name string) bool {
	for _, d := range c.Drivers {
		if d == name {
			return true
		}
	}
	return false
}

func positive(d *Duration, fallback time.Duration) {
	if *d <= 0 {
		*d = Duration(fallback)
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
