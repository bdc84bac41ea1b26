//go:build linux

package probe

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/icecake0141/paraping/internal/icmpx"
)

// rawSocket is a raw ICMP socket connected to a single destination, so the
// kernel discards traffic from any other peer before we see it.
type rawSocket struct {
	fd int
}

func openRawSocket(dst net.IP) (Socket, error) {
	ip4 := dst.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("destination %s is not IPv4", dst)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMP)
	if err != nil {
		return nil, fmt.Errorf("raw socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, recvBufBytes); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set rcvbuf: %w", err)
	}

	// Let the kernel drop everything but echo replies. A set bit in the
	// filter mask blocks the corresponding ICMP type.
	mask := ^uint32(1 << icmpx.TypeEchoReply)
	if err := unix.SetsockoptInt(fd, unix.SOL_RAW, unix.ICMP_FILTER, int(mask)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set icmp filter: %w", err)
	}

	sa := &unix.SockaddrInet4{}
	copy(sa.Addr[:], ip4)
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("connect %s: %w", ip4, err)
	}

	return &rawSocket{fd: fd}, nil
}

func (s *rawSocket) Send(pkt []byte) error {
	n, err := unix.Write(s.fd, pkt)
	if err != nil {
		return err
	}
	if n != len(pkt) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(pkt))
	}
	return nil
}

func (s *rawSocket) Wait(timeout time.Duration) (bool, error) {
	// Round up so a sub-millisecond remainder still sleeps instead of
	// spinning against the deadline.
	ms := int((timeout + time.Millisecond - 1) / time.Millisecond)
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err == unix.EINTR {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *rawSocket) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	return n, err
}

func (s *rawSocket) Close() error {
	return unix.Close(s.fd)
}
