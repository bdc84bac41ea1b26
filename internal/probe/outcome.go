package probe

import "time"

// Kind classifies how a probe attempt ended. Exactly one Kind is assigned per
// completed attempt; Timeout is a normal "no reply" signal, not a malfunction.
type Kind int

const (
	Success Kind = iota
	Timeout
	InvalidArgument
	ResolutionFailed
	SocketFailed
	SendFailed
	WaitPrimitiveFailed
	ReceiveFailed
	ExecutionFailed
)

// Outcome is the structured result of a single echo probe.
type Outcome struct {
	Kind   Kind
	RTT    time.Duration // Success only
	TTL    int           // Success only, reply IP TTL
	Detail string        // error kinds only
}

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Timeout:
		return "timeout"
	case InvalidArgument:
		return "invalid_argument"
	case ResolutionFailed:
		return "resolution_failed"
	case SocketFailed:
		return "socket_failed"
	case SendFailed:
		return "send_failed"
	case WaitPrimitiveFailed:
		return "wait_failed"
	case ReceiveFailed:
		return "receive_failed"
	default:
		return "execution_failed"
	}
}

// IsError reports whether the outcome is a probe-local error. Timeout is
// deliberately excluded: downstream consumers must keep "no reply"
// distinguishable from malfunction.
func (k Kind) IsError() bool {
	return k != Success && k != Timeout
}

// Exit codes of the probe executable. These are contract, not implementation
// detail: the invocation adapter decodes them on the other side of the
// process boundary.
const (
	ExitSuccess     = 0
	ExitUsage       = 1
	ExitBadArgument = 2
	ExitResolution  = 3
	ExitSocket      = 4
	ExitSend        = 5
	ExitWait        = 6
	ExitTimeout     = 7
	ExitReceive     = 8
)

// ExitCode maps an outcome to the executor's exit status.
func (o Outcome) ExitCode() int {
	switch o.Kind {
	case Success:
		return ExitSuccess
	case Timeout:
		return ExitTimeout
	case InvalidArgument:
		return ExitBadArgument
	case ResolutionFailed:
		return ExitResolution
	case SocketFailed:
		return ExitSocket
	case SendFailed:
		return ExitSend
	case WaitPrimitiveFailed:
		return ExitWait
	case ReceiveFailed:
		return ExitReceive
	default:
		return 70
	}
}
