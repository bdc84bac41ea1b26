package asn

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "verbose reply",
			in:   "AS      | IP               | AS Name\n15169   | 8.8.8.8          | GOOGLE, US\n",
			want: "AS15169",
		},
		{
			name: "reply with AS prefix",
			in:   "AS      | IP  | AS Name\nAS13335 | 1.1.1.1 | CLOUDFLARENET, US\n",
			want: "AS13335",
		},
		{
			name:    "na result",
			in:      "AS | IP | AS Name\nNA | 192.0.2.1 | NA\n",
			wantErr: true,
		},
		{
			name:    "header only",
			in:      "AS | IP | AS Name\n",
			wantErr: true,
		},
		{
			name:    "empty",
			in:      "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tt.want {
				t.Fatalf("asn: got %q, want %q", got, tt.want)
			}
		})
	}
}

// fakeWhois serves one canned response per accepted connection over net.Pipe.
func fakeWhois(response string, calls *int32) dialFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		atomic.AddInt32(calls, 1)
		client, server := net.Pipe()
		go func() {
			buf := make([]byte, 256)
			server.Read(buf)
			server.Write([]byte(response))
			server.Close()
		}()
		return client, nil
	}
}

func newTestResolver(dial dialFunc) *Resolver {
	return NewResolver(Options{
		Dial:       dial,
		Limiter:    rate.NewLimiter(rate.Inf, 1),
		Timeout:    time.Second,
		FailureTTL: 50 * time.Millisecond,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestResolverLookupCachesResult(t *testing.T) {
	var calls int32
	r := newTestResolver(fakeWhois("AS | IP | AS Name\n15169 | 8.8.8.8 | GOOGLE, US\n", &calls))
	r.Start(context.Background())
	defer r.Close()

	if _, ok := r.Lookup("8.8.8.8"); ok {
		t.Fatal("cold cache should miss")
	}
	r.Enqueue("8.8.8.8")
	waitFor(t, func() bool {
		_, ok := r.Lookup("8.8.8.8")
		return ok
	})
	got, _ := r.Lookup("8.8.8.8")
	if got != "AS15169" {
		t.Fatalf("asn: got %q, want AS15169", got)
	}

	// Cached addresses must not hit upstream again.
	r.Enqueue("8.8.8.8")
	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("upstream calls: got %d, want 1", n)
	}
}

func TestResolverFailureCooldown(t *testing.T) {
	var calls int32
	dial := func(ctx context.Context, network, address string) (net.Conn, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("unreachable")
	}
	r := newTestResolver(dial)
	r.Start(context.Background())
	defer r.Close()

	r.Enqueue("192.0.2.9")
	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })

	// Inside the failure TTL the address is not retried.
	r.Enqueue("192.0.2.9")
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("retried inside cooldown: %d calls", n)
	}

	// After the TTL a retry goes through.
	time.Sleep(60 * time.Millisecond)
	r.Enqueue("192.0.2.9")
	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 2 })
}

func TestResolverEnqueueEmptyAddress(t *testing.T) {
	var calls int32
	r := newTestResolver(fakeWhois("x\ny\n", &calls))
	r.Start(context.Background())
	defer r.Close()

	r.Enqueue("")
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Fatalf("empty address dialed upstream %d times", n)
	}
}
