// Command paraping-probe performs exactly one ICMP echo probe and exits. It
// is the only part of paraping that needs raw-socket privilege; grant it
// CAP_NET_RAW (or setuid) and keep the orchestrator unprivileged.
//
// Usage:
//
//	paraping-probe <host> <timeout_ms> [icmp_seq [icmp_ident]]
//
// On success it prints `rtt_ms=<float> ttl=<int>` and exits 0. Timeouts and
// errors print nothing on stdout and are reported through the exit status.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/icecake0141/paraping/internal/probe"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	if len(args) < 2 || len(args) > 4 {
		fmt.Fprintln(errOut, "usage: paraping-probe <host> <timeout_ms> [icmp_seq [icmp_ident]]")
		return probe.ExitUsage
	}

	host := args[0]
	timeoutMs, err := strconv.Atoi(args[1])
	if err != nil || timeoutMs < 1 || timeoutMs > 60000 {
		fmt.Fprintf(errOut, "timeout_ms must be an integer in [1, 60000], got %q\n", args[1])
		return probe.ExitBadArgument
	}

	seq := 1
	if len(args) >= 3 {
		seq, err = strconv.Atoi(args[2])
		if err != nil || seq < 0 || seq > 65535 {
			fmt.Fprintf(errOut, "icmp_seq must be an integer in [0, 65535], got %q\n", args[2])
			return probe.ExitBadArgument
		}
	}

	// The correlation identifier is normally supplied by the caller; the
	// process id is only the fallback for manual invocations.
	ident := os.Getpid() & 0xffff
	if len(args) == 4 {
		ident, err = strconv.Atoi(args[3])
		if err != nil || ident < 0 || ident > 65535 {
			fmt.Fprintf(errOut, "icmp_ident must be an integer in [0, 65535], got %q\n", args[3])
			return probe.ExitBadArgument
		}
	}

	outcome := probe.Run(probe.Params{
		Target:  host,
		Timeout: time.Duration(timeoutMs) * time.Millisecond,
		Seq:     uint16(seq),
		Ident:   uint16(ident),
	}, probe.Options{})

	switch {
	case outcome.Kind == probe.Success:
		fmt.Fprintf(out, "rtt_ms=%.3f ttl=%d\n",
			float64(outcome.RTT)/float64(time.Millisecond), outcome.TTL)
	case outcome.Kind.IsError():
		fmt.Fprintln(errOut, outcome.Detail)
	}
	return outcome.ExitCode()
}
