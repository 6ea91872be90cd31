// Package snmp reads the MIB-II system group from devices that answer SNMP.
// The inventory only uses sysName and sysDescr (hostname, os and type hints).
package snmp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

type Config struct {
	Community string
	Version   string // "2c" (default) | "1"
	Port      uint16
	Timeout   time.Duration
	Retries   int
}

type SystemInfo struct {
	SysName     string
	SysDescr    string
	SysObjectID string
	SysContact  string
	SysLocation string
}

// Client issues one GET per device for the system group.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.Community) == "" {
		cfg.Community = "public"
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = "2c"
	}
	if cfg.Port == 0 {
		cfg.Port = 161
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 900 * time.Millisecond
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Client{cfg: cfg}
}

func parseVersion(raw string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "2c", "v2c", "":
		return gosnmp.Version2c, nil
	case "1", "v1":
		return gosnmp.Version1, nil
	}
	return 0, fmt.Errorf("unsupported snmp version %q", raw)
}

func (c *Client) connect(ctx context.Context, address string) (*gosnmp.GoSNMP, error) {
	version, err := parseVersion(c.cfg.Version)
	if err != nil {
		return nil, err
	}
	s := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    address,
		Port:      c.cfg.Port,
		Community: c.cfg.Community,
		Version:   version,
		Timeout:   c.cfg.Timeout,
		Retries:   c.cfg.Retries,
	}
	if err := s.Connect(); err != nil {
		return nil, err
	}
	return s, nil
}

const (
	oidSysDescr0    = "1.3.6.1.2.1.1.1.0"
	oidSysObjectID0 = "1.3.6.1.2.1.1.2.0"
	oidSysContact0  = "1.3.6.1.2.1.1.4.0"
	oidSysName0     = "1.3.6.1.2.1.1.5.0"
	oidSysLocation0 = "1.3.6.1.2.1.1.6.0"
)

func (c *Client) GetSystem(ctx context.Context, address string) (SystemInfo, error) {
	if c == nil {
		return SystemInfo{}, errors.New("snmp client is nil")
	}

	s, err := c.connect(ctx, address)
	if err != nil {
		return SystemInfo{}, err
	}
	defer s.Conn.Close()

	pkt, err := s.Get([]string{oidSysName0, oidSysDescr0, oidSysObjectID0, oidSysContact0, oidSysLocation0})
	if err != nil {
		return SystemInfo{}, err
	}
	return systemFromPDUs(pkt.Variables), nil
}

func systemFromPDUs(vars []gosnmp.SnmpPDU) SystemInfo {
	var out SystemInfo
	for _, v := range vars {
		val := pduString(v)
		switch strings.TrimPrefix(v.Name, ".") {
		case oidSysName0:
			out.SysName = val
		case oidSysDescr0:
			out.SysDescr = val
		case oidSysObjectID0:
			out.SysObjectID = val
		case oidSysContact0:
			out.SysContact = val
		case oidSysLocation0:
			out.SysLocation = val
		}
	}
	return out
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch v := pdu.Value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	}
	return ""
}
