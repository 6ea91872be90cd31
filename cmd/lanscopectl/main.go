package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"lanscope/core-go/internal/app"
	"lanscope/core-go/internal/config"
	"lanscope/core-go/internal/httpapi"
	"lanscope/core-go/internal/inventory"
)

type App struct {
	Out io.Writer
}

func (a App) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML config file",
			EnvVars: []string{"CONFIG_PATH"},
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "shorthand for --format json",
			Value: false,
		},
		&cli.StringFlag{
			Name:    "drivers",
			Aliases: []string{"d"},
			Usage:   "comma separated drivers to run (arp,dhcp,ssdp,mdns,nmap)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "log discovery progress to stderr",
			Value:   false,
		},
	}
}

func (a App) New() *cli.App {
	return &cli.App{
		Name:     "lanscopectl",
		Usage:    "one-shot LAN device discovery",
		Flags:    a.Flags(),
		Writer:   a.Out,
		Commands: a.Commands(),
	}
}

func (a App) Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "discover",
			Usage:  "Run a discovery pass and list the devices found",
			Action: a.Discover,
		},
		{
			Name:   "summary",
			Usage:  "Run a discovery pass and print summary counts",
			Action: a.Summary,
		},
		{
			Name:    "topology",
			Aliases: []string{"map"},
			Usage:   "Run a discovery pass and print the subnet graph",
			Action:  a.Topology,
		},
		{
			Name:   "aps",
			Usage:  "List nearby wireless access points",
			Action: a.AccessPoints,
		},
	}
}

// service builds an in-process inventory from the global flags.
func (a App) service(c *cli.Context) (*inventory.Service, error) {
	cfg, warnings, err := config.Load(c.String("config"), os.Getenv)
	if err != nil {
		return nil, err
	}
	if d := strings.TrimSpace(c.String("drivers")); d != "" {
		cfg.Drivers = strings.Split(d, ",")
		for i := range cfg.Drivers {
			cfg.Drivers[i] = strings.TrimSpace(cfg.Drivers[i])
		}
	}

	log := zerolog.Nop()
	if c.Bool("verbose") {
		log = httpapi.NewLogger("debug").Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	for _, w := range warnings {
		log.Warn().Msg(w)
	}
	svc, buildWarnings := app.Build(log, cfg, nil, nil)
	for _, w := range buildWarnings {
		log.Warn().Msg(w)
	}
	return svc, nil
}

func (a App) format(c *cli.Context) string {
	if c.Bool("json") {
		return "json"
	}
	return c.String("format")
}

func (a App) Discover(c *cli.Context) error {
	svc, err := a.service(c)
	if err != nil {
		return err
	}
	recs, err := svc.Discover(c.Context)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	return Out(a.Out, recs, a.format(c), devicesTmpl)
}

func (a App) Summary(c *cli.Context) error {
	svc, err := a.service(c)
	if err != nil {
		return err
	}
	view, err := svc.Summary(c.Context)
	if err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	return Out(a.Out, view, a.format(c), summaryTmpl)
}

func (a App) Topology(c *cli.Context) error {
	svc, err := a.service(c)
	if err != nil {
		return err
	}
	topo, err := svc.Topology(c.Context)
	if err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	return Out(a.Out, topo, a.format(c), topologyTmpl)
}

func (a App) AccessPoints(c *cli.Context) error {
	svc, err := a.service(c)
	if err != nil {
		return err
	}
	aps, err := svc.AccessPoints(c.Context)
	if err != nil {
		return fmt.Errorf("aps: %w", err)
	}
	return Out(a.Out, aps, a.format(c), accessPointsTmpl)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := (App{Out: os.Stdout}).New().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lanscopectl:", err)
		os.Exit(1)
	}
}
