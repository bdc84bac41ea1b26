// Package scheduler repeats probe cycles across the configured host set on a
// fixed cadence. It bounds global concurrency, keeps at most one probe in
// flight per host, and hands every completed probe to the recorder before the
// host becomes eligible again.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/icecake0141/paraping/internal/executor"
	"github.com/icecake0141/paraping/internal/history"
	"github.com/icecake0141/paraping/internal/logging"
)

// DefaultConcurrency mirrors the classic worker-pool ceiling: wide enough for
// typical host sets, narrow enough to stay clear of descriptor and kernel
// ICMP-rate limits.
const DefaultConcurrency = 10

type hostState int

const (
	stateIdle hostState = iota
	stateInFlight
)

// Host is one monitored target. The address identity is immutable for the
// run; the sequence counter advances modulo 65536.
type Host struct {
	Address string
	Alias   string

	state   hostState
	nextSeq uint16
	ident   uint16
}

func (h *Host) allocSeq() uint16 {
	seq := h.nextSeq
	h.nextSeq++ // wraps at 65536 by uint16 arithmetic
	return seq
}

// Recorder consumes completed probe records. history.Store satisfies it.
type Recorder interface {
	Record(history.Record)
}

// Config parametrizes a Scheduler.
type Config struct {
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
	// IdentBase seeds the per-host correlation identifiers passed to the
	// probe boundary; host i uses IdentBase+i mod 65536.
	IdentBase uint16
	Now       func() time.Time
	Log       *slog.Logger
}

// Scheduler drives the probe cycles.
type Scheduler struct {
	cfg      Config
	hosts    []*Host
	runner   executor.Runner
	recorder Recorder

	sem    chan struct{}
	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc

	errOnce  sync.Once
	fatalErr error
	done     chan struct{}
}

// New creates a Scheduler over the given hosts.
func New(hosts []*Host, runner executor.Runner, recorder Recorder, cfg Config) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logging.NopLogger()
	}
	if cfg.IdentBase == 0 {
		cfg.IdentBase = uint16(os.Getpid())
	}
	for i, h := range hosts {
		h.ident = cfg.IdentBase + uint16(i)
	}
	return &Scheduler{
		cfg:      cfg,
		hosts:    hosts,
		runner:   runner,
		recorder: recorder,
		sem:      make(chan struct{}, cfg.Concurrency),
		done:     make(chan struct{}),
	}
}

// Start launches the cycle loop. It returns immediately; use Wait to block
// until shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// First cycle fires immediately. A time.Ticker drops missed ticks, so a
	// cycle that overruns the interval is followed by the next one right
	// away with no compounding backlog.
	for {
		s.runCycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	for _, h := range s.hosts {
		s.mu.Lock()
		if h.state != stateIdle {
			// Probe N has not completed; N+1 must wait for a later cycle.
			s.mu.Unlock()
			continue
		}
		h.state = stateInFlight
		seq := h.allocSeq()
		ident := h.ident
		s.mu.Unlock()

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			s.setIdle(h)
			return
		}

		s.wg.Add(1)
		go s.probe(ctx, h, seq, ident)
	}
}

func (s *Scheduler) probe(ctx context.Context, h *Host, seq, ident uint16) {
	defer s.wg.Done()
	defer func() { <-s.sem }()
	// The host re-enters the cycle only after its record is stored.
	defer s.setIdle(h)

	issuedAt := s.cfg.Now()
	outcome, err := s.runner.RunProbe(ctx, h.Address, s.cfg.Timeout, seq, ident)
	if err != nil {
		if errors.Is(err, executor.ErrProbeBinary) {
			s.fail(err)
			return
		}
		// Cancelled mid-flight; the incomplete attempt is discarded.
		return
	}

	rec := history.Record{
		Host:        h.Address,
		Seq:         seq,
		IssuedAt:    issuedAt,
		CompletedAt: s.cfg.Now(),
		Outcome:     outcome,
	}
	s.recorder.Record(rec)

	if outcome.Kind.IsError() {
		s.cfg.Log.Warn("probe error",
			logging.KeyHost, h.Address,
			logging.KeySeq, seq,
			logging.KeyOutcome, outcome.Kind.String(),
			logging.KeyError, outcome.Detail)
	} else {
		s.cfg.Log.Debug("probe recorded",
			logging.KeyHost, h.Address,
			logging.KeySeq, seq,
			logging.KeyOutcome, outcome.Kind.String(),
			logging.KeyRTT, float64(outcome.RTT)/float64(time.Millisecond))
	}
}

func (s *Scheduler) setIdle(h *Host) {
	s.mu.Lock()
	h.state = stateIdle
	s.mu.Unlock()
}

// fail records the first fatal error and stops the run. Probe-level errors
// and timeouts never come through here; only an unusable probe binary does.
func (s *Scheduler) fail(err error) {
	s.errOnce.Do(func() {
		s.fatalErr = err
		s.cfg.Log.Error("scheduler stopping", logging.KeyError, err.Error())
	})
	if s.cancel != nil {
		s.cancel()
	}
}

// Done is closed once the cycle loop has stopped, whether by Close, parent
// context cancellation, or a fatal probe-binary failure. Callers that block
// on external events should also watch Done so a dead scheduler is noticed.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Close cancels all in-flight probes and stops the cycle loop.
func (s *Scheduler) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blocks until the loop has stopped and every in-flight probe has been
// reaped, then reports the fatal error, if any.
func (s *Scheduler) Wait() error {
	<-s.done
	s.wg.Wait()
	return s.fatalErr
}
