// Package probe implements a single privilege-scoped ICMP echo probe: resolve
// the target, send one request over a raw socket connected to it, and wait for
// a matching reply or the deadline. It is the engine behind the paraping-probe
// executable and never retries.
package probe

import (
	"fmt"
	"net"
	"time"

	"github.com/icecake0141/paraping/internal/icmpx"
)

const (
	// MinTimeout and MaxTimeout bound the accepted probe timeout.
	MinTimeout = 1 * time.Millisecond
	MaxTimeout = 60 * time.Second

	// recvBufBytes is the kernel receive buffer requested for the raw
	// socket. Generous sizing reduces drops when many probes run at once.
	recvBufBytes = 1 << 20

	// readBufLen fits any IPv4 datagram we care about. Allocated once per
	// probe, never sized by packet contents.
	readBufLen = 1500
)

// Params are the inputs of one probe attempt.
type Params struct {
	Target  string        // hostname or IPv4 literal
	Timeout time.Duration // within [MinTimeout, MaxTimeout]
	Seq     uint16
	Ident   uint16 // caller-supplied correlation value
}

// Socket is the raw ICMP socket surface the engine drives. Exactly one Socket
// is held per probe and closed on every exit path.
type Socket interface {
	// Send writes one echo request to the connected destination.
	Send(pkt []byte) error
	// Wait blocks until the socket is readable or the timeout elapses.
	Wait(timeout time.Duration) (ready bool, err error)
	// Recv reads the next available raw datagram, IP header included.
	Recv(buf []byte) (int, error)
	Close() error
}

type resolveFunc func(host string) (net.IP, error)

type openSocketFunc func(dst net.IP) (Socket, error)

// Options inject the engine's external dependencies. Zero values select the
// real resolver, clock and raw socket.
type Options struct {
	Resolve    resolveFunc
	Now        func() time.Time
	OpenSocket openSocketFunc
}

// Run executes one probe attempt and reports its outcome. Validation and I/O
// failures are returned as outcomes, never panics.
func Run(p Params, opts Options) Outcome {
	resolve := opts.Resolve
	if resolve == nil {
		resolve = resolveIPv4
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	open := opts.OpenSocket
	if open == nil {
		open = openRawSocket
	}

	if p.Target == "" {
		return Outcome{Kind: InvalidArgument, Detail: "empty target"}
	}
	if p.Timeout < MinTimeout || p.Timeout > MaxTimeout {
		return Outcome{Kind: InvalidArgument, Detail: fmt.Sprintf("timeout %v out of range", p.Timeout)}
	}

	dst, err := resolve(p.Target)
	if err != nil {
		return Outcome{Kind: ResolutionFailed, Detail: err.Error()}
	}

	sock, err := open(dst)
	if err != nil {
		return Outcome{Kind: SocketFailed, Detail: err.Error()}
	}
	defer sock.Close()

	pkt := icmpx.BuildEchoRequest(p.Ident, p.Seq)
	sentAt := now()
	if err := sock.Send(pkt); err != nil {
		return Outcome{Kind: SendFailed, Detail: err.Error()}
	}

	// The deadline is computed once; each iteration re-derives the remaining
	// time so repeated wakeups cannot drift past it.
	deadline := sentAt.Add(p.Timeout)
	buf := make([]byte, readBufLen)
	for {
		remaining := deadline.Sub(now())
		if remaining <= 0 {
			return Outcome{Kind: Timeout}
		}
		ready, err := sock.Wait(remaining)
		if err != nil {
			return Outcome{Kind: WaitPrimitiveFailed, Detail: err.Error()}
		}
		if !ready {
			continue
		}
		n, err := sock.Recv(buf)
		if err != nil {
			return Outcome{Kind: ReceiveFailed, Detail: err.Error()}
		}
		if !icmpx.ValidateReply(buf[:n], p.Ident, p.Seq, dst) {
			// Stray or spoofed packet; keep waiting.
			continue
		}
		return Outcome{
			Kind: Success,
			RTT:  now().Sub(sentAt),
			TTL:  icmpx.ReplyTTL(buf[:n]),
		}
	}
}

func resolveIPv4(host string) (net.IP, error) {
	addr, err := net.ResolveIPAddr("ip4", host)
	if err != nil {
		return nil, err
	}
	ip := addr.IP.To4()
	if ip == nil {
		return nil, fmt.Errorf("no IPv4 address for %s", host)
	}
	return ip, nil
}
