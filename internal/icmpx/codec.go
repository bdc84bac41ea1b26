// Package icmpx builds ICMPv4 echo requests and validates candidate replies.
// It is pure byte manipulation; all socket I/O lives in the probe package.
package icmpx

import (
	"encoding/binary"
	"net"
)

const (
	// PacketSize is the fixed on-wire size of an echo request, header included.
	PacketSize = 64

	// EchoHeaderLen is the ICMP echo header length (type, code, checksum, id, seq).
	EchoHeaderLen = 8

	TypeEchoRequest = 8
	TypeEchoReply   = 0

	// ProtocolICMP is the IANA protocol number for ICMPv4.
	ProtocolICMP = 1

	minIPHeaderLen = 20
	maxIPHeaderLen = 60
)

// BuildEchoRequest returns a 64-byte ICMP echo request with a zero-filled
// payload. The checksum is computed over the whole packet with the checksum
// field zeroed.
func BuildEchoRequest(ident, seq uint16) []byte {
	pkt := make([]byte, PacketSize)
	pkt[0] = TypeEchoRequest
	pkt[1] = 0
	binary.BigEndian.PutUint16(pkt[4:6], ident)
	binary.BigEndian.PutUint16(pkt[6:8], seq)
	binary.BigEndian.PutUint16(pkt[2:4], Checksum(pkt))
	return pkt
}

// Checksum computes the RFC 1071 internet checksum: 16-bit one's-complement
// sum with end-around carry folding. Odd-length input is padded with a zero
// byte for the computation only.
func Checksum(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// ValidateReply reports whether raw is a full IPv4 datagram carrying the echo
// reply matching the given identifier, sequence and source address. Any
// malformed, truncated or mismatched packet yields false; no field is read
// before the bounds check covering it.
func ValidateReply(raw []byte, ident, seq uint16, src net.IP) bool {
	if len(raw) < minIPHeaderLen {
		return false
	}
	if raw[0]>>4 != 4 {
		return false
	}
	ihl := int(raw[0]&0x0f) * 4
	if ihl < minIPHeaderLen || ihl > maxIPHeaderLen {
		return false
	}
	totalLen := int(binary.BigEndian.Uint16(raw[2:4]))
	if ihl > totalLen || totalLen < ihl+EchoHeaderLen {
		return false
	}
	if raw[9] != ProtocolICMP {
		return false
	}
	if len(raw) < ihl+EchoHeaderLen {
		return false
	}
	expected := src.To4()
	if expected == nil || !net.IP(raw[12:16]).Equal(expected) {
		return false
	}
	msg := raw[ihl:]
	if msg[0] != TypeEchoReply || msg[1] != 0 {
		return false
	}
	if binary.BigEndian.Uint16(msg[4:6]) != ident {
		return false
	}
	if binary.BigEndian.Uint16(msg[6:8]) != seq {
		return false
	}
	return true
}

// ReplyTTL extracts the IP time-to-live of a validated reply datagram.
func ReplyTTL(raw []byte) int {
	if len(raw) < minIPHeaderLen {
		return 0
	}
	return int(raw[8])
}
