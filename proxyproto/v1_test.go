package proxyproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseV1_HealthyIPv4(t *testing.T) {
	buf := []byte("PROXY TCP4 192.168.0.1 192.168.0.11 56324 443\r\n")

	pi, n, err := ParseV1(buf)
	require.NoError(t, err)
	assert.Equal(t, 45, n)
	assert.Equal(t, AddressFamilyInet, pi.AddressFamily)
	assert.Equal(t, TransportProtocolStream, pi.TransportProtocol)
	assert.Equal(t, "192.168.0.1", pi.SrcAddr)
	assert.Equal(t, "192.168.0.11", pi.DstAddr)
	assert.Equal(t, uint16(56324), pi.SrcPort)
	assert.Equal(t, uint16(443), pi.DstPort)
}

func TestParseV1_UnknownShortForm(t *testing.T) {
	buf := []byte("PROXY UNKNOWN\r\n")

	pi, n, err := ParseV1(buf)
	require.NoError(t, err)
	assert.Equal(t, 15, n)
	assert.Equal(t, AddressFamilyUnspec, pi.AddressFamily)
	assert.Equal(t, TransportProtocolUnspec, pi.TransportProtocol)
}

func TestParseV1_UnknownWithTrailer(t *testing.T) {
	buf := []byte("PROXY UNKNOWN anything goes here\r\n")

	pi, n, err := ParseV1(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, AddressFamilyUnspec, pi.AddressFamily)
}

func TestParseV1_IPv6(t *testing.T) {
	buf := []byte("PROXY TCP6 ::1 ::2 1 2\r\n")

	pi, n, err := ParseV1(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, AddressFamilyInet6, pi.AddressFamily)
	assert.Equal(t, "::1", pi.SrcAddr)
	assert.Equal(t, "::2", pi.DstAddr)
}

func TestParseV1_MissingCRLF(t *testing.T) {
	buf := []byte("PROXY TCP4 1.2.3.4 5.6.7.8 1 2")

	_, _, err := ParseV1(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP1CRLF, err.(*Error).Kind)
}

func TestParseV1_WrongProxyToken(t *testing.T) {
	buf := []byte("PROXZ TCP4 1.2.3.4 5.6.7.8 1 2\r\n")

	_, _, err := ParseV1(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP1Proxy, err.(*Error).Kind)
}

func TestParseV1_UnrecognizedTransportFamily(t *testing.T) {
	buf := []byte("PROXY TCP5 1.2.3.4 5.6.7.8 1 2\r\n")

	_, _, err := ParseV1(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP1TransportFamily, err.(*Error).Kind)
}

func TestParseV1_InvalidSrcIP(t *testing.T) {
	buf := []byte("PROXY TCP4 not-an-ip 5.6.7.8 1 2\r\n")

	_, _, err := ParseV1(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP1IPv4SrcIP, err.(*Error).Kind)
}

func TestParseV1_InvalidDstIP(t *testing.T) {
	buf := []byte("PROXY TCP4 1.2.3.4 not-an-ip 1 2\r\n")

	_, _, err := ParseV1(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP1IPv4DstIP, err.(*Error).Kind)
}

func TestParseV1_PortZeroRejected(t *testing.T) {
	buf := []byte("PROXY TCP4 1.2.3.4 5.6.7.8 0 2\r\n")

	_, _, err := ParseV1(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP1SrcPort, err.(*Error).Kind)
}

func TestParseV1_PortMaxAccepted(t *testing.T) {
	buf := []byte("PROXY TCP4 1.2.3.4 5.6.7.8 65535 1\r\n")

	pi, _, err := ParseV1(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), pi.SrcPort)
}

func TestParseV1_DstPortOutOfRange(t *testing.T) {
	buf := []byte("PROXY TCP4 1.2.3.4 5.6.7.8 1 65536\r\n")

	_, _, err := ParseV1(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP1DstPort, err.(*Error).Kind)
}

func TestSerializeV1_Unknown(t *testing.T) {
	pi := &PpInfo{AddressFamily: AddressFamilyUnspec}

	buf, err := SerializeV1(pi)
	require.NoError(t, err)
	assert.Equal(t, "PROXY UNKNOWN\r\n", string(buf))
}

func TestSerializeV1_IPv4RoundTrip(t *testing.T) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyInet,
		TransportProtocol: TransportProtocolStream,
		SrcAddr:           "192.168.0.1",
		DstAddr:           "192.168.0.11",
		SrcPort:           56324,
		DstPort:           443,
	}

	buf, err := SerializeV1(pi)
	require.NoError(t, err)
	assert.Equal(t, "PROXY TCP4 192.168.0.1 192.168.0.11 56324 443\r\n", string(buf))

	reparsed, n, err := ParseV1(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, pi.AddressFamily, reparsed.AddressFamily)
	assert.Equal(t, pi.SrcAddr, reparsed.SrcAddr)
	assert.Equal(t, pi.DstAddr, reparsed.DstAddr)
	assert.Equal(t, pi.SrcPort, reparsed.SrcPort)
	assert.Equal(t, pi.DstPort, reparsed.DstPort)
}

func TestSerializeV1_RejectsDatagram(t *testing.T) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyInet,
		TransportProtocol: TransportProtocolDatagram,
		SrcAddr:           "1.2.3.4",
		DstAddr:           "5.6.7.8",
	}

	_, err := SerializeV1(pi)
	require.Error(t, err)
	assert.Equal(t, ErrPP1TransportFamily, err.(*Error).Kind)
}

func TestSerializeV1_RejectsInvalidAddress(t *testing.T) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyInet,
		TransportProtocol: TransportProtocolStream,
		SrcAddr:           "not-an-ip",
		DstAddr:           "5.6.7.8",
	}

	_, err := SerializeV1(pi)
	require.Error(t, err)
	assert.Equal(t, ErrPP1IPv4SrcIP, err.(*Error).Kind)
}

func TestV1HeaderNeverExceedsBound(t *testing.T) {
	// Longest TCP6 line: max-length v6 addresses and ports (104 bytes),
	// still within the 107-byte v1 bound.
	buf := []byte("PROXY TCP6 ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff 65535 65535\r\n")
	assert.LessOrEqual(t, len(buf), 107+2)

	_, n, err := ParseV1(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
}
