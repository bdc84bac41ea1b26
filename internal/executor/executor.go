// Package executor invokes the privilege-scoped paraping-probe binary, one
// process per probe, and translates its observable result (stdout plus exit
// status) into a structured outcome. The process boundary keeps raw-socket
// privilege out of the orchestrator.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/icecake0141/paraping/internal/logging"
	"github.com/icecake0141/paraping/internal/probe"
)

// DefaultGrace is added on top of the requested probe timeout before the
// watchdog kills a hung executor process.
const DefaultGrace = 2 * time.Second

// ErrProbeBinary marks a failure to spawn the probe binary at all. Unlike
// per-probe outcomes this is fatal to the run and must reach the operator.
var ErrProbeBinary = errors.New("probe binary cannot be executed")

// Runner issues a single probe. Implementations must never leak a process or
// descriptor, whatever the outcome.
type Runner interface {
	RunProbe(ctx context.Context, target string, timeout time.Duration, seq, ident uint16) (probe.Outcome, error)
}

// ProcessRunner runs each probe as one external process.
type ProcessRunner struct {
	binary string
	grace  time.Duration
	log    *slog.Logger
}

// NewProcessRunner resolves the probe binary path up front so a missing or
// non-executable binary fails the run immediately instead of turning every
// probe into an ExecutionFailed record.
func NewProcessRunner(binary string, grace time.Duration, log *slog.Logger) (*ProcessRunner, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProbeBinary, err)
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	if log == nil {
		log = logging.NopLogger()
	}
	return &ProcessRunner{binary: path, grace: grace, log: log}, nil
}

// RunProbe spawns one executor process and reaps it. The returned error is
// non-nil only when no probe actually ran: the spawn failed outright or ctx
// was cancelled, in which case the attempt is discarded by the caller.
func (r *ProcessRunner) RunProbe(ctx context.Context, target string, timeout time.Duration, seq, ident uint16) (probe.Outcome, error) {
	// Watchdog sits above the probe's own deadline; if the boundary hangs we
	// kill it rather than trust its timekeeping.
	runCtx, cancel := context.WithTimeout(ctx, timeout+r.grace)
	defer cancel()

	timeoutMs := strconv.FormatInt(timeout.Milliseconds(), 10)
	cmd := exec.CommandContext(runCtx, r.binary,
		target,
		timeoutMs,
		strconv.FormatUint(uint64(seq), 10),
		strconv.FormatUint(uint64(ident), 10),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.grace

	err := cmd.Run()
	if ctx.Err() != nil {
		// Shutdown raced the probe; the attempt is incomplete and must not
		// be recorded.
		return probe.Outcome{}, ctx.Err()
	}
	if err == nil {
		return parseSuccess(stdout.String())
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return probe.Outcome{}, fmt.Errorf("%w: %v", ErrProbeBinary, err)
	}
	if runCtx.Err() == context.DeadlineExceeded {
		r.log.Warn("probe executor hung past watchdog",
			logging.KeyHost, target, logging.KeySeq, seq)
		return probe.Outcome{Kind: probe.ExecutionFailed, Detail: "killed by watchdog"}, nil
	}
	return mapExitCode(exitErr.ExitCode(), strings.TrimSpace(stderr.String())), nil
}

// parseSuccess decodes the zero-status stdout line `rtt_ms=<float> ttl=<int>`.
func parseSuccess(out string) (probe.Outcome, error) {
	var rttMs float64
	var ttl int
	if _, err := fmt.Sscanf(strings.TrimSpace(out), "rtt_ms=%f ttl=%d", &rttMs, &ttl); err != nil {
		return probe.Outcome{
			Kind:   probe.ExecutionFailed,
			Detail: fmt.Sprintf("unparseable executor output %q", strings.TrimSpace(out)),
		}, nil
	}
	if rttMs < 0 || ttl < 0 || ttl > 255 {
		return probe.Outcome{
			Kind:   probe.ExecutionFailed,
			Detail: fmt.Sprintf("executor output out of range: rtt_ms=%v ttl=%d", rttMs, ttl),
		}, nil
	}
	return probe.Outcome{
		Kind: probe.Success,
		RTT:  time.Duration(rttMs * float64(time.Millisecond)),
		TTL:  ttl,
	}, nil
}

func mapExitCode(code int, detail string) probe.Outcome {
	switch code {
	case probe.ExitUsage, probe.ExitBadArgument:
		return probe.Outcome{Kind: probe.InvalidArgument, Detail: detail}
	case probe.ExitResolution:
		return probe.Outcome{Kind: probe.ResolutionFailed, Detail: detail}
	case probe.ExitSocket:
		return probe.Outcome{Kind: probe.SocketFailed, Detail: detail}
	case probe.ExitSend:
		return probe.Outcome{Kind: probe.SendFailed, Detail: detail}
	case probe.ExitWait:
		return probe.Outcome{Kind: probe.WaitPrimitiveFailed, Detail: detail}
	case probe.ExitTimeout:
		return probe.Outcome{Kind: probe.Timeout}
	case probe.ExitReceive:
		return probe.Outcome{Kind: probe.ReceiveFailed, Detail: detail}
	default:
		if detail == "" {
			detail = fmt.Sprintf("unrecognized exit status %d", code)
		}
		return probe.Outcome{Kind: probe.ExecutionFailed, Detail: detail}
	}
}
