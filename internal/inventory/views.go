package inventory

import (
	"sort"
	"strings"

	"lanscope/core-go/internal/device"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 20
	DefaultMaxPage = 100
	recentLimit    = 5
)

type InventoryView struct {
	Devices     []device.Record `json:"devices"`
	TotalCount  int             `json:"total_count"`
	OnlineCount int             `json:"online_count"`
	LastScan    int64           `json:"last_scan"`
}

type Counts struct {
	TotalDevices       int `json:"total_devices"`
	OnlineDevices      int `json:"online_devices"`
	OfflineDevices     int `json:"offline_devices"`
	InvestigateDevices int `json:"investigate_devices"`
}

type SummaryView struct {
	Summary       Counts          `json:"summary"`
	ByType        map[string]int  `json:"by_type"`
	ByVendor      map[string]int  `json:"by_vendor"`
	RecentDevices []device.Record `json:"recent_devices"`
}

// Summarize derives the summary in one pass over recs. Offline counts every
// device that is not online.
func Summarize(recs []device.Record) SummaryView {
	out := SummaryView{
		ByType:   make(map[string]int),
		ByVendor: make(map[string]int),
	}
	for _, r := range recs {
		out.Summary.TotalDevices++
		if r.Status == device.StatusOnline {
			out.Summary.OnlineDevices++
		}
		if device.HasTag(r.Tags, device.TagInvestigate) {
			out.Summary.InvestigateDevices++
		}
		out.ByType[orUnknown(r.DeviceType)]++
		out.ByVendor[orUnknown(r.Vendor)]++
	}
	out.Summary.OfflineDevices = out.Summary.TotalDevices - out.Summary.OnlineDevices

	recent := device.CloneAll(recs)
	sortByLastSeen(recent)
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	out.RecentDevices = recent
	return out
}

func orUnknown(v string) string {
	if device.IsUnknown(v) {
		return device.Unknown
	}
	return v
}

// Criteria are conjunctive; empty fields match everything.
type Criteria struct {
	DeviceType string
	Vendor     string
	Status     string
	Tag        string
	Search     string
	Page       int
	PerPage    int
}

type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type FilteredView struct {
	Devices    []device.Record `json:"devices"`
	Pagination Pagination      `json:"pagination"`
}

// Matches reports whether r satisfies every set criterion.
func (c Criteria) Matches(r device.Record) bool {
	if c.DeviceType != "" && !containsFold(r.DeviceType, c.DeviceType) {
		return false
	}
	if c.Vendor != "" && !containsFold(r.Vendor, c.Vendor) {
		return false
	}
	if c.Status != "" && r.Status != c.Status {
		return false
	}
	if c.Tag != "" && !device.HasTag(r.Tags, c.Tag) {
		return false
	}
	if c.Search != "" {
		q := c.Search
		if !containsFold(r.Hostname, q) && !containsFold(r.IP, q) && !containsFold(r.MAC, q) && !containsFold(r.Vendor, q) {
			return false
		}
	}
	return true
}

// Filter applies c to recs and pages the matches, newest first. Page and page
// size are clamped rather than rejected; a page past the end is empty.
func Filter(recs []device.Record, c Criteria, maxPerPage int) FilteredView {
	var matched []device.Record
	for _, r := range recs {
		if c.Matches(r) {
			matched = append(matched, r.Clone())
		}
	}
	sortByLastSeen(matched)

	page, perPage := clampPage(c.Page, c.PerPage, maxPerPage)
	total := len(matched)
	totalPages := (total + perPage - 1) / perPage

	start := (page - 1) * perPage
	devices := []device.Record{}
	if start < total {
		end := start + perPage
		if end > total {
			end = total
		}
		devices = matched[start:end]
	}

	return FilteredView{
		Devices: devices,
		Pagination: Pagination{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}

func clampPage(page, perPage, maxPerPage int) (int, int) {
	if maxPerPage <= 0 {
		maxPerPage = DefaultMaxPage
	}
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func sortByLastSeen(recs []device.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].LastSeen != recs[j].LastSeen {
			return recs[i].LastSeen > recs[j].LastSeen
		}
		return device.CompareIPs(recs[i].IP, recs[j].IP) < 0
	})
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
