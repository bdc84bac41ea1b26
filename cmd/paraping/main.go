// Command paraping monitors many hosts with ICMP echo probes, one privileged
// probe process per attempt, and shows live results in a terminal table with
// pageable history.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/icecake0141/paraping/internal/asn"
	"github.com/icecake0141/paraping/internal/executor"
	"github.com/icecake0141/paraping/internal/history"
	"github.com/icecake0141/paraping/internal/logging"
	"github.com/icecake0141/paraping/internal/metrics"
	"github.com/icecake0141/paraping/internal/scheduler"
	"github.com/icecake0141/paraping/internal/stats"
	"github.com/icecake0141/paraping/internal/ui"
)

type config struct {
	intervalMs  int
	timeoutMs   int
	capacity    int
	concurrency int
	hostsFile   string
	probeBin    string
	graceMs     int
	asnEnabled  bool
	metricsAddr string
	logFile     string
	logLevel    string
	logFormat   string
	noUI        bool
}

func parseArgs(args []string) (config, []string, string, error) {
	var cfg config
	var usageBuf bytes.Buffer

	fs := pflag.NewFlagSet("paraping", pflag.ContinueOnError)
	fs.SetOutput(&usageBuf)

	fs.IntVarP(&cfg.intervalMs, "interval", "i", 1000, "probe cycle interval in ms")
	fs.IntVarP(&cfg.timeoutMs, "timeout", "t", 1000, "per-probe timeout in ms (1-60000)")
	fs.IntVarP(&cfg.capacity, "history", "H", 300, "probe records retained per host")
	fs.IntVarP(&cfg.concurrency, "concurrency", "c", scheduler.DefaultConcurrency, "max probes in flight at once")
	fs.StringVarP(&cfg.hostsFile, "file", "f", "", "hosts list file (YAML or plain text)")
	fs.StringVarP(&cfg.probeBin, "probe", "p", "paraping-probe", "path to the privileged probe executable")
	fs.IntVar(&cfg.graceMs, "grace", 2000, "watchdog grace above the probe timeout in ms")
	fs.BoolVarP(&cfg.asnEnabled, "asn", "a", false, "enrich targets with origin AS lookups")
	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9217)")
	fs.StringVarP(&cfg.logFile, "log", "o", "", "structured log output file")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "log format: text, json")
	fs.BoolVar(&cfg.noUI, "no-ui", false, "run headless; log records instead of drawing the table")

	fs.Usage = func() {
		fmt.Fprintln(&usageBuf, "Usage: paraping [options] host1 host2 ...")
		fmt.Fprintln(&usageBuf, "Options:")
		fs.PrintDefaults()
		fmt.Fprintln(&usageBuf, "Note: the probe executable needs CAP_NET_RAW; the orchestrator does not.")
	}

	if err := fs.Parse(args); err != nil {
		return config{}, nil, usageBuf.String(), err
	}

	hosts := fs.Args()
	if len(hosts) == 0 && cfg.hostsFile == "" {
		fs.Usage()
		return config{}, nil, usageBuf.String(), fmt.Errorf("no hosts provided")
	}
	if cfg.timeoutMs < 1 || cfg.timeoutMs > 60000 {
		return config{}, nil, usageBuf.String(), fmt.Errorf("timeout must be in [1, 60000] ms")
	}
	if cfg.intervalMs < 1 {
		return config{}, nil, usageBuf.String(), fmt.Errorf("interval must be positive")
	}
	if cfg.capacity < 1 {
		return config{}, nil, usageBuf.String(), fmt.Errorf("history capacity must be positive")
	}
	return cfg, hosts, usageBuf.String(), nil
}

// multiRecorder fans completion records out to every sink on the single
// writer path.
type multiRecorder []scheduler.Recorder

func (m multiRecorder) Record(rec history.Record) {
	for _, r := range m {
		r.Record(rec)
	}
}

func buildLogger(cfg config, errOut io.Writer) (*slog.Logger, func(), error) {
	if cfg.logFile != "" {
		f, err := os.OpenFile(cfg.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		return logging.NewLogger(cfg.logLevel, cfg.logFormat, f), func() { f.Close() }, nil
	}
	if cfg.noUI {
		// Headless mode owns stderr.
		return logging.NewLogger(cfg.logLevel, cfg.logFormat, errOut), func() {}, nil
	}
	// The TUI owns the terminal; unsolicited log lines would corrupt it.
	return logging.NopLogger(), func() {}, nil
}

// resolveTargets builds the display rows, resolving each address once for
// the Address column and enrichment lookups.
func resolveTargets(entries []hostEntry, resolver *asn.Resolver) []ui.Target {
	targets := make([]ui.Target, 0, len(entries))
	for _, e := range entries {
		t := ui.Target{Address: e.Address, Alias: e.Alias}
		if addr, err := net.ResolveIPAddr("ip4", e.Address); err == nil {
			t.IP = addr.IP.String()
			if resolver != nil {
				resolver.Enqueue(t.IP)
			}
		}
		targets = append(targets, t)
	}
	return targets
}

func printSummary(out io.Writer, store *history.Store, capacity int) {
	fmt.Fprintln(out, "\n--- paraping statistics ---")
	for _, host := range store.Hosts() {
		snap := stats.Compute(store.Window(host, 0, capacity))
		fmt.Fprintf(out, "%s: %d probes, %.1f%% success, failure streak %d\n",
			host, snap.Total, snap.SuccessRate*100, snap.FailureStreak)
		if snap.Successes > 0 {
			fmt.Fprintf(out, "rtt mean/stddev = %.3f/%.3f ms\n",
				float64(snap.RTTMean)/float64(time.Millisecond),
				float64(snap.RTTStddev)/float64(time.Millisecond))
		}
	}
}

func run(args []string, out, errOut io.Writer) int {
	cfg, argHosts, usage, err := parseArgs(args)
	if err != nil {
		if err == pflag.ErrHelp {
			fmt.Fprint(out, usage)
			return 0
		}
		fmt.Fprint(errOut, usage)
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	var fileEntries []hostEntry
	if cfg.hostsFile != "" {
		fileEntries, err = parseHostsFile(cfg.hostsFile)
		if err != nil {
			fmt.Fprintf(errOut, "Error reading hosts file: %v\n", err)
			return 1
		}
	}
	entries, err := mergeHosts(fileEntries, argHosts)
	if err != nil {
		fmt.Fprint(errOut, usage)
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}

	log, closeLog, err := buildLogger(cfg, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "Error opening log file: %v\n", err)
		return 1
	}
	defer closeLog()

	runner, err := executor.NewProcessRunner(cfg.probeBin, time.Duration(cfg.graceMs)*time.Millisecond, log)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		fmt.Fprintln(errOut, "Build it with: go build ./cmd/paraping-probe && sudo setcap cap_net_raw+ep paraping-probe")
		return 1
	}

	addresses := make([]string, 0, len(entries))
	hosts := make([]*scheduler.Host, 0, len(entries))
	for _, e := range entries {
		addresses = append(addresses, e.Address)
		hosts = append(hosts, &scheduler.Host{Address: e.Address, Alias: e.Alias})
	}

	store := history.NewStore(cfg.capacity, addresses)
	recorder := multiRecorder{store}

	if cfg.metricsAddr != "" {
		m := metrics.New()
		recorder = append(recorder, m)
		go func() {
			if err := http.ListenAndServe(cfg.metricsAddr, m.Handler()); err != nil {
				log.Error("metrics server stopped", logging.KeyError, err.Error())
			}
		}()
	}

	if cfg.noUI {
		recorder = append(recorder, recordLogger{log: log})
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var resolver *asn.Resolver
	if cfg.asnEnabled {
		resolver = asn.NewResolver(asn.Options{Log: log})
		resolver.Start(ctx)
		defer resolver.Close()
	}
	targets := resolveTargets(entries, resolver)

	sched := scheduler.New(hosts, runner, recorder, scheduler.Config{
		Interval:    time.Duration(cfg.intervalMs) * time.Millisecond,
		Timeout:     time.Duration(cfg.timeoutMs) * time.Millisecond,
		Concurrency: cfg.concurrency,
		Log:         log,
	})
	sched.Start(ctx)

	if cfg.noUI {
		// A dead scheduler must end the run too, not just a signal;
		// otherwise a fatal probe-binary failure leaves the process idle
		// and the error unreported until someone interrupts it.
		select {
		case <-ctx.Done():
		case <-sched.Done():
		}
		sched.Close()
	} else {
		var asnSource ui.ASNSource
		if resolver != nil {
			asnSource = resolver
		}
		refresh := time.Duration(cfg.intervalMs) * time.Millisecond / 2
		if refresh < 100*time.Millisecond {
			refresh = 100 * time.Millisecond
		}
		if err := ui.Run(targets, store, asnSource, refresh, sched.Done(), sched.Close); err != nil {
			fmt.Fprintf(errOut, "Error running UI: %v\n", err)
			sched.Close()
		}
	}

	if err := sched.Wait(); err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		printSummary(out, store, cfg.capacity)
		return 1
	}
	printSummary(out, store, cfg.capacity)
	return 0
}

// recordLogger mirrors completed probes into the structured log for headless
// runs.
type recordLogger struct {
	log *slog.Logger
}

func (r recordLogger) Record(rec history.Record) {
	r.log.Info("probe",
		logging.KeyHost, rec.Host,
		logging.KeySeq, rec.Seq,
		logging.KeyOutcome, rec.Outcome.Kind.String(),
		logging.KeyRTT, float64(rec.Outcome.RTT)/float64(time.Millisecond),
		logging.KeyTTL, rec.Outcome.TTL)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
