package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

var devicesTmpl = strings.Join([]string{
	`# total {{ len . }}`,
	`{{ps -15 "ip"}} {{ps -17 "mac"}} {{ps -24 "hostname"}} {{ps -18 "vendor"}} {{ps -9 "type"}} {{ps -7 "status"}} {{ps "last seen"}}`,
	`{{- range . }}`,
	`{{ps -15 .IP}} {{ps -17 (or .MAC "-")}} {{ps -24 (or .Hostname "-")}} {{ps -18 .Vendor}} {{ps -9 .DeviceType}} {{ps -7 .Status}} {{ago .LastSeen}}`,
	`{{- end }}`,
	``}, "\n")

var summaryTmpl = strings.Join([]string{
	`total {{ .Summary.TotalDevices }}  online {{ .Summary.OnlineDevices }}  offline {{ .Summary.OfflineDevices }}  investigate {{ .Summary.InvestigateDevices }}`,
	``,
	`{{ps -12 "type"}} count`,
	`{{- range $k, $v := .ByType }}`,
	`{{ps -12 $k}} {{ $v }}`,
	`{{- end }}`,
	``,
	`{{ps -24 "vendor"}} count`,
	`{{- range $k, $v := .ByVendor }}`,
	`{{ps -24 $k}} {{ $v }}`,
	`{{- end }}`,
	``}, "\n")

var topologyTmpl = strings.Join([]string{
	`{{- range .Nodes }}`,
	`{{ps -7 .Type}} {{ps -28 .ID}} {{ .Name }}`,
	`{{- end }}`,
	``,
	`{{- range .Links }}`,
	`{{ .Source }} -> {{ .Target }}`,
	`{{- end }}`,
	``}, "\n")

var accessPointsTmpl = strings.Join([]string{
	`# total {{ len . }}`,
	`{{ps -24 "ssid"}} {{ps -17 "bssid"}} {{ps -5 "rssi"}} {{ps -4 "ch"}} {{ps "security"}}`,
	`{{- range . }}`,
	`{{ps -24 .SSID}} {{ps -17 .BSSID}} {{pi -5 .RSSI}} {{pi -4 .Channel}} {{ps .Security}}`,
	`{{- end }}`,
	``}, "\n")

func funcMap(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"ps": func(args ...any) string {
			if len(args) == 1 {
				return fmt.Sprint(args[0])
			}
			space, _ := args[0].(int)
			return fmt.Sprintf("%"+strconv.Itoa(space)+"s", args[1])
		},
		"pi": func(space int, v int) string {
			return fmt.Sprintf("%"+strconv.Itoa(space)+"d", v)
		},
		"ago": func(unix int64) string {
			if unix <= 0 {
				return "never"
			}
			return humanize.RelTime(time.Unix(unix, 0), now(), "ago", "from now")
		},
	}
}

// Out writes data as json, yaml, or through tmpl for anything else.
func Out(w io.Writer, data any, format, tmpl string) error {
	return out(w, data, format, tmpl, time.Now)
}

func out(w io.Writer, data any, format, tmpl string, now func() time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		t, err := template.New("main").Funcs(funcMap(now)).Parse(tmpl)
		if err != nil {
			return err
		}
		return t.Execute(w, data)
	}
}
