//go:build !linux

package probe

import (
	"errors"
	"net"
)

// Raw connected ICMP sockets with a kernel-side echo-reply filter are only
// wired up for Linux. Other platforms report SocketFailed.
func openRawSocket(dst net.IP) (Socket, error) {
	return nil, errors.New("raw ICMP sockets are not supported on this platform")
}
