package proxyproto

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// pp1MaxLength is the v1 upper bound: the worst case "PROXY UNKNOWN
// <39-char v6> <39-char v6> 65535 65535\r\n" line is 107 bytes, plus a
// trailing byte of headroom.
const pp1MaxLength = 108

const pp1Sig = "PROXY"

// ParseV1 parses a version 1 (human-readable) PROXY protocol header from
// the start of buf. It returns the number of bytes consumed (the header
// length including the trailing CRLF) on success.
func ParseV1(buf []byte) (*PpInfo, int, error) {
	n := len(buf)
	if n > pp1MaxLength {
		n = pp1MaxLength
	}
	block := string(buf[:n])

	idx := strings.Index(block, "\r\n")
	if idx < 0 {
		return nil, 0, newErr(ErrPP1CRLF)
	}
	hdrLen := idx + 2
	line := block[:idx]

	if !strings.HasPrefix(line, pp1Sig) {
		return nil, 0, newErr(ErrPP1Proxy)
	}
	rest := line[len(pp1Sig):]
	if len(rest) == 0 || rest[0] != ' ' {
		return nil, 0, newErr(ErrPP1Space)
	}
	rest = rest[1:]

	if rest == "UNKNOWN" || strings.HasPrefix(rest, "UNKNOWN") {
		pi := &PpInfo{
			AddressFamily:     AddressFamilyUnspec,
			TransportProtocol: TransportProtocolUnspec,
		}
		return pi, hdrLen, nil
	}

	var family AddressFamily
	var netFamily string
	switch {
	case strings.HasPrefix(rest, "TCP4 "):
		family, netFamily = AddressFamilyInet, "tcp4"
		rest = rest[len("TCP4"):]
	case strings.HasPrefix(rest, "TCP6 "):
		family, netFamily = AddressFamilyInet6, "tcp6"
		rest = rest[len("TCP6"):]
	default:
		return nil, 0, newErr(ErrPP1TransportFamily)
	}

	fields := strings.Split(rest, " ")
	// fields[0] is empty (the space right after TCP4/TCP6); expect
	// exactly 4 tokens after it: src, dst, sport, dport, and nothing else.
	if len(fields) != 5 || fields[0] != "" {
		return nil, 0, newErr(ErrPP1Space)
	}
	srcAddr, dstAddr, srcPortStr, dstPortStr := fields[1], fields[2], fields[3], fields[4]

	srcErr, dstErr := ErrPP1IPv4SrcIP, ErrPP1IPv4DstIP
	if family == AddressFamilyInet6 {
		srcErr, dstErr = ErrPP1IPv6SrcIP, ErrPP1IPv6DstIP
	}
	if !validInetAddr(netFamily, srcAddr) {
		return nil, 0, newErr(srcErr)
	}
	if !validInetAddr(netFamily, dstAddr) {
		return nil, 0, newErr(dstErr)
	}

	srcPort, ok := parsePort(srcPortStr)
	if !ok {
		return nil, 0, newErr(ErrPP1SrcPort)
	}
	dstPort, ok := parsePort(dstPortStr)
	if !ok {
		return nil, 0, newErr(ErrPP1DstPort)
	}

	pi := &PpInfo{
		AddressFamily:     family,
		TransportProtocol: TransportProtocolStream,
		SrcAddr:           srcAddr,
		DstAddr:           dstAddr,
		SrcPort:           srcPort,
		DstPort:           dstPort,
	}
	return pi, hdrLen, nil
}

func validInetAddr(netFamily, addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	isV4 := ip.To4() != nil
	if netFamily == "tcp4" {
		return isV4
	}
	return !isV4
}

func parsePort(s string) (uint16, bool) {
	port, err := strconv.ParseUint(s, 10, 32)
	if err != nil || port == 0 || port > 65535 {
		return 0, false
	}
	return uint16(port), true
}

// SerializeV1 renders pi as a version 1 PROXY protocol line.
func SerializeV1(pi *PpInfo) ([]byte, error) {
	if pi.TransportProtocol != TransportProtocolUnspec && pi.TransportProtocol != TransportProtocolStream {
		return nil, newErr(ErrPP1TransportFamily)
	}

	switch pi.AddressFamily {
	case AddressFamilyUnspec:
		return []byte("PROXY UNKNOWN\r\n"), nil
	case AddressFamilyInet, AddressFamilyInet6:
		netFamily := "tcp4"
		fam := "TCP4"
		if pi.AddressFamily == AddressFamilyInet6 {
			netFamily, fam = "tcp6", "TCP6"
		}
		srcErr, dstErr := ErrPP1IPv4SrcIP, ErrPP1IPv4DstIP
		if pi.AddressFamily == AddressFamilyInet6 {
			srcErr, dstErr = ErrPP1IPv6SrcIP, ErrPP1IPv6DstIP
		}
		if !validInetAddr(netFamily, pi.SrcAddr) {
			return nil, newErr(srcErr)
		}
		if !validInetAddr(netFamily, pi.DstAddr) {
			return nil, newErr(dstErr)
		}
		line := fmt.Sprintf("PROXY %s %s %s %d %d\r\n", fam, pi.SrcAddr, pi.DstAddr, pi.SrcPort, pi.DstPort)
		return []byte(line), nil
	default:
		return nil, newErr(ErrPP1TransportFamily)
	}
}
