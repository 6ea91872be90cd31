package resolver

import (
	"bufio"
	"context"
	"strings"

	"lanscope/core-go/internal/naming"
	"lanscope/core-go/internal/probe"
)

// NetBIOS asks the host for its node-status table through the platform tool
// (nbtstat or nmblookup).
type NetBIOS struct {
	sys probe.System
}

func NewNetBIOS(sys probe.System) *NetBIOS {
	return &NetBIOS{sys: sys}
}

func (n *NetBIOS) LookupAddr(ctx context.Context, address string) ([]Candidate, error) {
	text, err := n.sys.NetBIOSStatus(ctx, address)
	if err != nil {
		return nil, err
	}
	name, ok := ParseNodeStatus(text)
	if !ok {
		return nil, nil
	}
	return []Candidate{{Name: name, Address: address, Source: naming.SourceNetBIOS}}, nil
}

type nodeName struct {
	name   string
	suffix string
	kind   string
	group  bool
	known  bool
}

// ParseNodeStatus returns the first unique <00> (workstation) name from
// `nbtstat -A` or `nmblookup -A` output. Group names are skipped.
//
// nmblookup marks groups with a <GROUP> flag. nbtstat prints a localized type
// column, so the words for unique and group are learned from suffixes that are
// only ever one or the other (<20>, <03>, <1D>, <1B> unique; <1C>, <1E> group).
func ParseNodeStatus(text string) (string, bool) {
	var names []nodeName
	var uniqueKind, groupKind string
	hasService := make(map[string]bool)

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		n, ok := parseNodeLine(sc.Text())
		if !ok {
			continue
		}
		switch n.suffix {
		case "<20>", "<03>", "<1D>", "<1B>":
			hasService[n.name] = true
			if !n.known && uniqueKind == "" {
				uniqueKind = n.kind
			}
		case "<1C>", "<1E>":
			if !n.known && groupKind == "" {
				groupKind = n.kind
			}
		}
		names = append(names, n)
	}

	for _, n := range names {
		if n.suffix != "<00>" || n.name == "" {
			continue
		}
		group := n.group
		if !n.known {
			switch {
			case uniqueKind != "":
				group = n.kind != uniqueKind
			case groupKind != "":
				group = n.kind == groupKind
			case hasService[n.name]:
				group = false
			default:
				group = strings.EqualFold(n.kind, "GROUP")
			}
		}
		if !group {
			return n.name, true
		}
	}
	return "", false
}

// parseNodeLine splits one name-table row around its <XX> suffix token.
func parseNodeLine(line string) (nodeName, bool) {
	fields := strings.Fields(line)
	for i, f := range fields {
		if i == 0 || !isSuffixToken(f) {
			continue
		}
		n := nodeName{
			name:   strings.Join(fields[:i], " "),
			suffix: strings.ToUpper(f),
		}
		rest := fields[i+1:]
		if len(rest) > 0 && rest[0] == "-" {
			// nmblookup: NAME <00> - [<GROUP>] B <ACTIVE>
			n.known = true
			for _, r := range rest[1:] {
				if r == "<GROUP>" {
					n.group = true
				}
			}
		} else if len(rest) > 0 {
			n.kind = rest[0]
		}
		return n, true
	}
	return nodeName{}, false
}

func isSuffixToken(s string) bool {
	return len(s) == 4 && s[0] == '<' && s[3] == '>' && isHexDigit(s[1]) && isHexDigit(s[2])
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
