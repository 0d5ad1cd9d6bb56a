package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kortschak/utter"
	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/exp/slog"

	"github.com/probe-lab/snooze/pkg/diag"
	"github.com/probe-lab/snooze/pkg/httpd"
	"github.com/probe-lab/snooze/pkg/jlog"
	"github.com/probe-lab/snooze/pkg/run"
	"github.com/probe-lab/snooze/pkg/stats"
)

const appName = "snooze"

var app = &cli.App{
	Name:   appName,
	Usage:  "an HTTP backend that simulates controllable latency",
	Action: Run,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:        "port",
			Aliases:     []string{"p"},
			Usage:       "Port to listen on for HTTP requests.",
			Value:       80,
			Destination: &flags.port,
			EnvVars:     []string{"SNOOZE_PORT"},
		},
		&cli.StringFlag{
			Name:        "message",
			Aliases:     []string{"m"},
			Usage:       "Message to send in response to any path that is not a delay request.",
			Value:       "Hello from snooze!\n",
			Destination: &flags.message,
			EnvVars:     []string{"SNOOZE_MESSAGE"},
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Level of logging to emit, one of error, info or debug.",
			Value:       "info",
			Destination: &flags.logLevel,
			EnvVars:     []string{"SNOOZE_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:        "diag-addr",
			Usage:       "Network address to start the diagnostics server on (example: :9991), disabled when empty.",
			Value:       "",
			Destination: &flags.diagAddr,
			EnvVars:     []string{"SNOOZE_DIAG_ADDR"},
		},
		&cli.StringFlag{
			Name:        "cpuprofile",
			Usage:       "Write a CPU profile to the specified file before exiting.",
			Value:       "",
			Destination: &flags.cpuprofile,
			EnvVars:     []string{"SNOOZE_CPUPROFILE"},
		},
		&cli.StringFlag{
			Name:        "memprofile",
			Usage:       "Write an allocation profile to the file before exiting.",
			Value:       "",
			Destination: &flags.memprofile,
			EnvVars:     []string{"SNOOZE_MEMPROFILE"},
		},
		&cli.BoolFlag{
			Name:        "dump-config",
			Usage:       "Print the resolved configuration and exit.",
			Value:       false,
			Destination: &flags.dumpConfig,
			EnvVars:     []string{"SNOOZE_DUMP_CONFIG"},
		},
	},
}

var flags struct {
	port       int
	message    string
	logLevel   string
	diagAddr   string
	cpuprofile string
	memprofile string
	dumpConfig bool
}

func main() {
	ctx := context.Background()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// applyEnvOverrides reapplies the environment on top of whatever the
// command line resolved. Deployments of this server rely on the
// environment winning over flags, which is the reverse of what
// urfave/cli does, so each variable is looked up again after parsing.
// The SNOOZE_ prefixed name wins over the bare legacy name.
func applyEnvOverrides() {
	if v, ok := lookupFirst("SNOOZE_PORT", "PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			flags.port = p
		}
	}
	if v, ok := lookupFirst("SNOOZE_MESSAGE", "MESSAGE"); ok {
		flags.message = v
	}
	if v, ok := lookupFirst("SNOOZE_LOG_LEVEL"); ok {
		flags.logLevel = v
	}
	if v, ok := lookupFirst("SNOOZE_DIAG_ADDR"); ok {
		flags.diagAddr = v
	}
	if v, ok := lookupFirst("SNOOZE_CPUPROFILE"); ok {
		flags.cpuprofile = v
	}
	if v, ok := lookupFirst("SNOOZE_MEMPROFILE"); ok {
		flags.memprofile = v
	}
}

func lookupFirst(names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
	}
	return "", false
}

func Run(cc *cli.Context) error {
	ctx := cc.Context
	started := time.Now()

	applyEnvOverrides()

	level, err := jlog.ParseLevel(flags.logLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logLevel := new(slog.LevelVar)
	logLevel.Set(level)
	slog.SetDefault(slog.New(jlog.NewHandler(os.Stdout).WithLevel(logLevel)))

	if flags.dumpConfig {
		fmt.Println(utter.Sdump(flags))
		return nil
	}

	if flags.cpuprofile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(flags.cpuprofile)).Stop()
	}

	if flags.memprofile != "" {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(flags.memprofile)).Stop()
	}

	tc := propagation.TraceContext{}
	otel.SetTextMapPropagator(tc)
	if err := setTracerProvider(ctx); err != nil {
		return fmt.Errorf("set tracer provider: %w", err)
	}

	rg := &run.Group{}

	coll := stats.NewCollector(1024)
	rg.Add(coll)

	srv, err := httpd.NewServer(fmt.Sprintf(":%d", flags.port), flags.message, started, coll)
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}
	rg.Add(srv)

	if flags.diagAddr != "" {
		ds, err := diag.NewServer(flags.diagAddr, coll)
		if err != nil {
			return fmt.Errorf("diagnostics server: %w", err)
		}
		rg.Add(run.Restartable{Runnable: ds})
	}

	return rg.RunAndWait(ctx)
}

func setTracerProvider(ctx context.Context) error {
	exporters, err := buildTracerExporters(ctx)
	if err != nil {
		return err
	}

	options := []trace.TracerProviderOption{}

	for _, exporter := range exporters {
		options = append(options, trace.WithBatcher(exporter))
	}

	tp := trace.NewTracerProvider(options...)
	otel.SetTracerProvider(tp)

	return nil
}

func buildTracerExporters(ctx context.Context) ([]trace.SpanExporter, error) {
	var exporters []trace.SpanExporter

	if os.Getenv("OTEL_TRACES_EXPORTER") == "" {
		return exporters, nil
	}

	for _, exporterStr := range strings.Split(os.Getenv("OTEL_TRACES_EXPORTER"), ",") {
		switch exporterStr {
		case "otlp":
			exporter, err := otlptracegrpc.New(ctx)
			if err != nil {
				return nil, fmt.Errorf("new OTLP gRPC exporter: %w", err)
			}
			exporters = append(exporters, exporter)
		case "jaeger":
			exporter, err := jaeger.New(jaeger.WithCollectorEndpoint())
			if err != nil {
				return nil, fmt.Errorf("new Jaeger exporter: %w", err)
			}
			exporters = append(exporters, exporter)
		case "zipkin":
			exporter, err := zipkin.New("")
			if err != nil {
				return nil, fmt.Errorf("new Zipkin exporter: %w", err)
			}
			exporters = append(exporters, exporter)
		default:
			return nil, fmt.Errorf("unknown or unsupported exporter: %q", exporterStr)
		}
	}
	return exporters, nil
}
