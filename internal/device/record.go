package device

import "time"

// Unknown is the sentinel used for vendor and device type before any source
// or resolver has produced a value.
const Unknown = "Unknown"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusUnknown = "unknown"
)

const (
	TypeRouter   = "Router"
	TypeComputer = "Computer"
	TypePhone    = "Phone"
	TypePrinter  = "Printer"
	TypeCamera   = "Camera"
	TypeTV       = "TV"
	TypeUnknown  = Unknown
)

const (
	TagTrusted     = "trusted"
	TagBlocked     = "blocked"
	TagInvestigate = "investigate"
	TagLocal       = "local"
)

// Record is one device as seen by the inventory. Drivers emit partial records;
// the merge engine folds them into one record per physical device.
type Record struct {
	IP         string   `json:"ip"`
	MAC        string   `json:"mac"`
	Hostname   string   `json:"hostname"`
	Vendor     string   `json:"vendor"`
	DeviceType string   `json:"device_type"`
	FirstSeen  int64    `json:"first_seen"`
	LastSeen   int64    `json:"last_seen"`
	Status     string   `json:"status"`
	Tags       []string `json:"tags"`
	Notes      string   `json:"notes"`
	OS         string   `json:"os"`

	// Source names the driver that created the record. It is not part of the
	// external document.
	Source string `json:"-"`
}

// NewRecord returns an online record observed at now with every classification
// field set to its unknown sentinel.
func NewRecord(ip, mac string, now time.Time) Record {
	ts := now.Unix()
	return Record{
		IP:         ip,
		MAC:        mac,
		Vendor:     Unknown,
		DeviceType: TypeUnknown,
		FirstSeen:  ts,
		LastSeen:   ts,
		Status:     StatusOnline,
		Tags:       []string{},
	}
}

// IsUnknown reports whether v is one of the values a merge may overwrite.
func IsUnknown(v string) bool {
	return v == "" || v == Unknown
}

// Key returns the identity key of r: the hardware address when known, the IP
// address otherwise.
func (r Record) Key() string {
	if r.MAC != "" {
		return "mac:" + r.MAC
	}
	return "ip:" + r.IP
}

// Clone returns a copy of r that shares no slices with it.
func (r Record) Clone() Record {
	out := r
	out.Tags = append([]string{}, r.Tags...)
	return out
}

// CloneAll deep-copies a record slice.
func CloneAll(in []Record) []Record {
	out := make([]Record, 0, len(in))
	for _, r := range in {
		out = append(out, r.Clone())
	}
	return out
}

// AccessPoint is a nearby wireless network. It is never merged into Record.
type AccessPoint struct {
	SSID      string `json:"ssid"`
	BSSID     string `json:"bssid"`
	RSSI      int    `json:"rssi"`
	Channel   int    `json:"channel"`
	Security  string `json:"security"`
	Frequency int    `json:"frequency"`
}
