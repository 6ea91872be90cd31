package discovery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxDescriptorBytes = 64 << 10

// Descriptor holds the fields of a UPnP device description that feed a
// device record.
type Descriptor struct {
	FriendlyName     string
	Manufacturer     string
	ModelName        string
	ModelDescription string
	DeviceType       string
}

// FetchDescriptor performs one GET of a UPnP description document. The caller
// bounds it through ctx.
func FetchDescriptor(ctx context.Context, client *http.Client, location string) (Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return Descriptor{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return Descriptor{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Descriptor{}, fmt.Errorf("descriptor %s: status %d", location, resp.StatusCode)
	}
	return ParseDescriptor(io.LimitReader(resp.Body, maxDescriptorBytes))
}

// ParseDescriptor reads the first occurrence of each known element regardless
// of namespace or nesting, so embedded devices never shadow the root device.
func ParseDescriptor(r io.Reader) (Descriptor, error) {
	var d Descriptor
	dec := xml.NewDecoder(r)
	dec.Strict = false

	fields := map[string]*string{
		"friendlyname":     &d.FriendlyName,
		"manufacturer":     &d.Manufacturer,
		"modelname":        &d.ModelName,
		"modeldescription": &d.ModelDescription,
		"devicetype":       &d.DeviceType,
	}
	var current *string
	sawElement := false

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if sawElement {
				// Truncated documents still yield what was read.
				break
			}
			return Descriptor{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			sawElement = true
			current = nil
			if dst, ok := fields[strings.ToLower(t.Name.Local)]; ok && *dst == "" {
				current = dst
			}
		case xml.CharData:
			if current != nil {
				*current += string(t)
			}
		case xml.EndElement:
			if current != nil {
				*current = strings.TrimSpace(*current)
			}
			current = nil
		}
	}
	return d, nil
}
