// Package asn resolves origin AS numbers for probed addresses through Team
// Cymru's whois service. Lookups run asynchronously behind a cache so the
// probe path never blocks on enrichment; failed lookups are retried only
// after a cooldown.
package asn

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/icecake0141/paraping/internal/logging"
)

const (
	defaultServer     = "whois.cymru.com:43"
	defaultTimeout    = 3 * time.Second
	defaultFailureTTL = 5 * time.Minute
	maxResponseBytes  = 64 * 1024
	queueDepth        = 64
)

type entry struct {
	value     string
	ok        bool
	fetchedAt time.Time
}

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Options tune the resolver; zero values select production defaults.
type Options struct {
	Server     string
	Timeout    time.Duration
	FailureTTL time.Duration
	// Limiter throttles upstream whois queries. Defaults to 1 req/s.
	Limiter *rate.Limiter
	Dial    dialFunc
	Now     func() time.Time
	Log     *slog.Logger
}

// Resolver caches ASN lookups keyed by IP address.
type Resolver struct {
	opts     Options
	mu       sync.RWMutex
	cache    map[string]entry
	requests chan string
	pending  map[string]bool
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewResolver creates a stopped resolver; call Start before Enqueue.
func NewResolver(opts Options) *Resolver {
	if opts.Server == "" {
		opts.Server = defaultServer
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.FailureTTL <= 0 {
		opts.FailureTTL = defaultFailureTTL
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(rate.Every(time.Second), 1)
	}
	if opts.Dial == nil {
		opts.Dial = (&net.Dialer{}).DialContext
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logging.NopLogger()
	}
	return &Resolver{
		opts:     opts,
		cache:    make(map[string]entry),
		requests: make(chan string, queueDepth),
		pending:  make(map[string]bool),
	}
}

// Start launches the lookup worker.
func (r *Resolver) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.worker(ctx)
}

// Close stops the worker and waits for it.
func (r *Resolver) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Lookup returns the cached ASN for ip, if any.
func (r *Resolver) Lookup(ip string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[ip]
	if !ok || !e.ok {
		return "", false
	}
	return e.value, true
}

// Enqueue requests an async lookup for ip. Addresses already cached, pending,
// or inside the failure cooldown are skipped; a full queue drops the request
// rather than blocking the caller.
func (r *Resolver) Enqueue(ip string) {
	if ip == "" {
		return
	}
	r.mu.Lock()
	if r.pending[ip] || !r.shouldFetchLocked(ip) {
		r.mu.Unlock()
		return
	}
	r.pending[ip] = true
	r.mu.Unlock()

	select {
	case r.requests <- ip:
	default:
		r.mu.Lock()
		delete(r.pending, ip)
		r.mu.Unlock()
	}
}

func (r *Resolver) shouldFetchLocked(ip string) bool {
	e, ok := r.cache[ip]
	if !ok {
		return true
	}
	if !e.ok && r.opts.Now().Sub(e.fetchedAt) >= r.opts.FailureTTL {
		return true
	}
	return false
}

func (r *Resolver) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ip := <-r.requests:
			if err := r.opts.Limiter.Wait(ctx); err != nil {
				return
			}
			value, err := r.resolve(ctx, ip)
			now := r.opts.Now()
			r.mu.Lock()
			delete(r.pending, ip)
			r.cache[ip] = entry{value: value, ok: err == nil, fetchedAt: now}
			r.mu.Unlock()
			if err != nil {
				r.opts.Log.Debug("asn lookup failed",
					logging.KeyAddress, ip, logging.KeyError, err.Error())
			}
		}
	}
}

func (r *Resolver) resolve(ctx context.Context, ip string) (string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	conn, err := r.opts.Dial(dialCtx, "tcp", r.opts.Server)
	if err != nil {
		return "", fmt.Errorf("dial whois: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(r.opts.Now().Add(r.opts.Timeout))

	if _, err := conn.Write([]byte(" -v " + ip + "\n")); err != nil {
		return "", fmt.Errorf("send query: %w", err)
	}

	buf := make([]byte, 4096)
	var response strings.Builder
	for response.Len() < maxResponseBytes {
		n, err := conn.Read(buf)
		if n > 0 {
			response.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return parseResponse(response.String())
}

// parseResponse extracts the AS number from a Team Cymru verbose reply: a
// header line followed by pipe-separated fields, the first being the ASN.
func parseResponse(response string) (string, error) {
	var lines []string
	for _, line := range strings.Split(response, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return "", fmt.Errorf("short whois response (%d lines)", len(lines))
	}
	parts := strings.Split(lines[1], "|")
	asn := strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(parts[0]), "AS", ""))
	if asn == "" || strings.EqualFold(asn, "NA") {
		return "", fmt.Errorf("no ASN in whois response")
	}
	return "AS" + asn, nil
}
