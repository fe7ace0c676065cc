// Package cmdutil provides shared flag state and the shared dial/print
// helpers every psppdu subcommand uses, grounded on dittofsctl's cmdutil
// package (global flag struct + a PrintOutput format switch).
package cmdutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/PSPReverse/libpspproxy/internal/logger"
	"github.com/PSPReverse/libpspproxy/internal/transport"
	"github.com/PSPReverse/libpspproxy/pkg/config"
	"github.com/PSPReverse/libpspproxy/pkg/metrics"
	"github.com/PSPReverse/libpspproxy/pkg/metrics/prometheus"
	"github.com/PSPReverse/libpspproxy/pkg/proxy"
)

// Flags stores the global flag values every subcommand reads, synced from
// cobra's persistent flags in the root command's PersistentPreRunE.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	Device     string
	ConfigPath string
	Timeout    time.Duration
	Output     string // table, json
}

// OutputFormat returns the parsed output format, defaulting to table for an
// empty or unrecognized value.
func (f *GlobalFlags) OutputFormat() string {
	switch f.Output {
	case "json":
		return "json"
	default:
		return "table"
	}
}

// LoadConfig loads pkg/config.Config, layering the --device/--timeout flag
// overrides (when set) on top of the file/env/defaults Load already
// resolved.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(Flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if Flags.Device != "" {
		cfg.Device = Flags.Device
	}
	if Flags.Timeout > 0 {
		cfg.RequestTimeout = Flags.Timeout
	}
	return cfg, nil
}

// Dial loads configuration, initializes logging, connects a Proxy to
// cfg.Device, and returns it along with a context carrying a LogContext,
// which the caller should thread through the rest of the command so every
// log line carries a connection id.
func Dial(ctx context.Context) (*proxy.Proxy, context.Context, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	lc := logger.NewLogContext(uuid.NewString())
	ctx = lc.WithContext(ctx)

	tr, err := transport.Open(ctx, cfg.Device)
	if err != nil {
		return nil, nil, fmt.Errorf("open transport: %w", err)
	}
	p := proxy.New(tr, nil)
	if cfg.Metrics.Enabled {
		p.SetMetrics(newMetricsCollector())
	} else {
		p.SetMetrics(metrics.Noop)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	if err := p.Connect(connectCtx); err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	logger.InfoCtx(ctx, "connected", "device", cfg.Device)
	return p, ctx, nil
}

// newMetricsCollector is split out so tests can stub it without pulling in
// a live HTTP listener; production callers get the Prometheus collector.
var newMetricsCollector = func() metrics.Metrics { return prometheus.New() }

// PrintOutput writes fields as a human-readable table (one "key: value" line
// per field of a flat map) or as JSON, depending on Flags.Output.
func PrintOutput(w io.Writer, fields map[string]any) error {
	if Flags.OutputFormat() == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	}
	for _, k := range orderedKeys(fields) {
		fmt.Fprintf(w, "%-16s %v\n", k+":", fields[k])
	}
	return nil
}

// orderedKeys is a small stable-order helper since map iteration order
// isn't, and table output should read the same way every run.
func orderedKeys(fields map[string]any) []string {
	order := []string{
		"device", "ccd", "address", "value", "bytes", "chunks",
		"cb_pdu_max", "scratch_start", "scratch_length",
		"c_sys_sockets", "c_ccds_per_socket", "c_ccds",
		"irq", "timed_out", "rc", "run_id",
	}
	keys := make([]string, 0, len(fields))
	for _, k := range order {
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
		}
	}
	for k := range fields {
		found := false
		for _, seen := range keys {
			if seen == k {
				found = true
				break
			}
		}
		if !found {
			keys = append(keys, k)
		}
	}
	return keys
}
