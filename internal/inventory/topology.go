package inventory

import (
	"sort"
	"strings"

	"lanscope/core-go/internal/device"
)

const (
	NodeSubnet = "subnet"
	NodeRouter = "router"
	NodeClient = "client"

	otherGroup = "other"
)

type Node struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	IP     string `json:"ip,omitempty"`
	Vendor string `json:"vendor,omitempty"`
	Status string `json:"status,omitempty"`
	OS     string `json:"os,omitempty"`
}

type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

type Topology struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// BuildTopology groups recs by /24 and links each group's router to its
// subnet node and to every other device of the group. Addresses that are not
// IPv4 share one "other" group. Output order is deterministic.
func BuildTopology(recs []device.Record) Topology {
	groups := make(map[string][]device.Record)
	for _, r := range recs {
		key, ok := device.Subnet24(r.IP)
		if !ok {
			key = otherGroup
		}
		groups[key] = append(groups[key], r)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == otherGroup || keys[j] == otherGroup {
			return keys[j] == otherGroup && keys[i] != otherGroup
		}
		return device.CompareIPs(keys[i]+".0", keys[j]+".0") < 0
	})

	out := Topology{Nodes: []Node{}, Links: []Link{}}
	for _, key := range keys {
		members := groups[key]
		sort.SliceStable(members, func(i, j int) bool {
			return device.CompareIPs(members[i].IP, members[j].IP) < 0
		})

		subnet := Node{ID: "subnet:" + key, Type: NodeSubnet, Name: subnetName(key)}
		out.Nodes = append(out.Nodes, subnet)

		routerIdx := pickRouter(members)
		var router Node
		if routerIdx >= 0 {
			router = deviceNode(members[routerIdx], NodeRouter)
		} else {
			router = syntheticRouter(key)
		}
		out.Nodes = append(out.Nodes, router)
		out.Links = append(out.Links, Link{Source: subnet.ID, Target: router.ID})

		for i, r := range members {
			if i == routerIdx {
				continue
			}
			client := deviceNode(r, NodeClient)
			out.Nodes = append(out.Nodes, client)
			out.Links = append(out.Links, Link{Source: router.ID, Target: client.ID})
		}
	}
	return out
}

// pickRouter returns the first member typed Router or addressed .1, or -1.
func pickRouter(members []device.Record) int {
	for i, r := range members {
		if r.DeviceType == device.TypeRouter || strings.HasSuffix(r.IP, ".1") {
			return i
		}
	}
	return -1
}

func subnetName(key string) string {
	if key == otherGroup {
		return otherGroup
	}
	return key + ".0/24"
}

func syntheticRouter(key string) Node {
	if key == otherGroup {
		return Node{ID: "router:" + otherGroup, Type: NodeRouter, Name: "Router (" + otherGroup + ")"}
	}
	ip := key + ".1"
	return Node{ID: "router:" + ip, Type: NodeRouter, Name: "Router " + ip, IP: ip}
}

func deviceNode(r device.Record, kind string) Node {
	name := r.Hostname
	if name == "" {
		name = r.IP
	}
	return Node{
		ID:     "device:" + r.Key(),
		Type:   kind,
		Name:   name,
		IP:     r.IP,
		Vendor: r.Vendor,
		Status: r.Status,
		OS:     r.OS,
	}
}
