package proxyproto

// AddressFamily identifies the layer-3 address family carried by a header.
// The numeric values match the upper nibble of the v2 "fam" byte on the
// wire.
type AddressFamily uint8

const (
	AddressFamilyUnspec AddressFamily = 0
	AddressFamilyInet   AddressFamily = 1
	AddressFamilyInet6  AddressFamily = 2
	AddressFamilyUnix   AddressFamily = 3
)

func (f AddressFamily) String() string {
	switch f {
	case AddressFamilyUnspec:
		return "UNSPEC"
	case AddressFamilyInet:
		return "INET"
	case AddressFamilyInet6:
		return "INET6"
	case AddressFamilyUnix:
		return "UNIX"
	default:
		return "INVALID"
	}
}

// TransportProtocol identifies the layer-4 transport. The numeric values
// match the lower nibble of the v2 "fam" byte on the wire.
type TransportProtocol uint8

const (
	TransportProtocolUnspec   TransportProtocol = 0
	TransportProtocolStream   TransportProtocol = 1
	TransportProtocolDatagram TransportProtocol = 2
)

func (p TransportProtocol) String() string {
	switch p {
	case TransportProtocolUnspec:
		return "UNSPEC"
	case TransportProtocolStream:
		return "STREAM"
	case TransportProtocolDatagram:
		return "DATAGRAM"
	default:
		return "INVALID"
	}
}

// Command is the v2-only discriminator between a health-check ("local")
// connection and one that actually conveys a proxied client's endpoint.
type Command uint8

const (
	CommandLocal Command = 0
	CommandProxy Command = 1
)

func (c Command) String() string {
	if c == CommandLocal {
		return "LOCAL"
	}
	return "PROXY"
}
