package relay

import (
	"fmt"
	"net"

	"github.com/avionblock/ppcodec/proxyproto"
)

// buildHeader renders the PROXY protocol header describing a client
// connection, for prepending on the backend side. src is the client's
// remote address, dst the listener address it connected to.
func buildHeader(version int, proto proxyproto.TransportProtocol, src, dst net.Addr) ([]byte, error) {
	srcHost, srcPort, err := splitAddr(src)
	if err != nil {
		return nil, err
	}
	dstHost, dstPort, err := splitAddr(dst)
	if err != nil {
		return nil, err
	}

	family := proxyproto.AddressFamilyInet
	if ip := net.ParseIP(srcHost); ip != nil && ip.To4() == nil {
		family = proxyproto.AddressFamilyInet6
	}

	pi := &proxyproto.PpInfo{
		AddressFamily:     family,
		TransportProtocol: proto,
		SrcAddr:           srcHost,
		DstAddr:           dstHost,
		SrcPort:           srcPort,
		DstPort:           dstPort,
	}
	return proxyproto.CreateHeader(version, pi)
}

func splitAddr(addr net.Addr) (string, uint16, error) {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.String(), uint16(a.Port), nil
	case *net.UDPAddr:
		return a.IP.String(), uint16(a.Port), nil
	default:
		return "", 0, fmt.Errorf("unsupported address type %T", addr)
	}
}
