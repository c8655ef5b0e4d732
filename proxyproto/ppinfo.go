package proxyproto

import (
	"encoding/binary"
	"fmt"
	"net"
)

const maxTlvValueLen = 0xFFFF

// PpInfo is the neutral, version-independent representation of a parsed
// or to-be-built PROXY protocol header. A zero PpInfo is ready to use.
type PpInfo struct {
	AddressFamily     AddressFamily
	TransportProtocol TransportProtocol
	Local             bool // v2 LOCAL command; meaningless for v1

	SrcAddr string
	DstAddr string
	SrcPort uint16
	DstPort uint16

	SSLInfo SslInfo

	CRC32C         bool // whether a CRC32C TLV was present (parse) or is requested (serialize)
	AlignmentPower uint8

	TLVs TlvList
}

// String renders pi for debug logging: family, protocol, endpoints, and
// the TLV sequence.
func (pi *PpInfo) String() string {
	return fmt.Sprintf("PpInfo{family:%s,proto:%s,local:%t,src:%s:%d,dst:%s:%d,crc32c:%t,tlvs:%s}",
		pi.AddressFamily, pi.TransportProtocol, pi.Local,
		pi.SrcAddr, pi.SrcPort, pi.DstAddr, pi.DstPort,
		pi.CRC32C, pi.TLVs)
}

// Clear resets pi to its zero value, releasing its TLV sequence so a
// PpInfo can be reused without allocating a new value.
func (pi *PpInfo) Clear() {
	*pi = PpInfo{}
}

// SourceAddr renders SrcAddr/SrcPort as a net.Addr appropriate for
// AddressFamily. It is a read-only convenience on top of the text fields,
// not a replacement for them.
func (pi *PpInfo) SourceAddr() net.Addr {
	return pi.addrFor(pi.SrcAddr, pi.SrcPort)
}

// DestAddr is the destination-side equivalent of SourceAddr.
func (pi *PpInfo) DestAddr() net.Addr {
	return pi.addrFor(pi.DstAddr, pi.DstPort)
}

func (pi *PpInfo) addrFor(addr string, port uint16) net.Addr {
	switch pi.AddressFamily {
	case AddressFamilyInet, AddressFamilyInet6:
		ip := net.ParseIP(addr)
		if pi.TransportProtocol == TransportProtocolDatagram {
			return &net.UDPAddr{IP: ip, Port: int(port)}
		}
		return &net.TCPAddr{IP: ip, Port: int(port)}
	case AddressFamilyUnix:
		return &net.UnixAddr{Name: addr, Net: "unix"}
	default:
		return nil
	}
}

// --- Builders -------------------------------------------------------------

func (pi *PpInfo) appendRaw(t TlvType, value []byte) bool {
	if len(value) > maxTlvValueLen {
		return false
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	pi.TLVs = append(pi.TLVs, Tlv{Type: t, Value: buf})
	return true
}

// AddALPN appends an ALPN TLV (opaque bytes).
func (pi *PpInfo) AddALPN(alpn []byte) bool {
	return pi.appendRaw(TlvALPN, alpn)
}

// AddAuthority appends an AUTHORITY TLV (UTF-8 hostname).
func (pi *PpInfo) AddAuthority(hostname []byte) bool {
	return pi.appendRaw(TlvAuthority, hostname)
}

// AddUniqueID appends a UNIQUE_ID TLV. The payload must not exceed 128
// bytes.
func (pi *PpInfo) AddUniqueID(id []byte) bool {
	if len(id) > 128 {
		return false
	}
	return pi.appendRaw(TlvUniqueID, id)
}

// AddNetns appends a NETNS TLV (US-ASCII network namespace name).
func (pi *PpInfo) AddNetns(netns string) bool {
	return pi.appendRaw(TlvNetns, []byte(netns))
}

// AddAWSVpceID appends an AWS TLV carrying a VPC endpoint id, with the
// AWS subtype byte preserved as value[0] as on the wire.
func (pi *PpInfo) AddAWSVpceID(vpceID string) bool {
	value := append([]byte{SubtypeAWSVpceID}, []byte(vpceID)...)
	return pi.appendRaw(TlvAWS, value)
}

// AddAzureLinkID appends an AZURE TLV carrying an Azure Private Link
// service link id, little-endian as emitted by the sender, with the
// subtype byte preserved as value[0].
func (pi *PpInfo) AddAzureLinkID(linkID uint32) bool {
	value := make([]byte, 5)
	value[0] = SubtypeAzurePrivateLinkID
	binary.LittleEndian.PutUint32(value[1:], linkID)
	return pi.appendRaw(TlvAzure, value)
}

// AddSSL composes and appends the SSL composite TLV (envelope + nested
// sub-TLVs) from pi.SSLInfo and the supplied string/CN fields. Any of
// version, cipher, sigAlg, keyAlg, cn may be empty/nil, in which case that
// sub-TLV is omitted.
func (pi *PpInfo) AddSSL(version, cipher, sigAlg, keyAlg string, cn []byte) bool {
	fields := []struct {
		subtype TlvType
		value   []byte
	}{
		{TlvSSLVersion, []byte(version)},
		{TlvSSLCipher, []byte(cipher)},
		{TlvSSLSigAlg, []byte(sigAlg)},
		{TlvSSLKeyAlg, []byte(keyAlg)},
		{TlvSSLCN, cn},
	}

	total := 1 + 4
	for _, f := range fields {
		if len(f.value) == 0 {
			continue
		}
		total += tlvHeaderSize + len(f.value)
	}
	if total > maxTlvValueLen {
		return false
	}

	value := make([]byte, 0, total)
	value = append(value, pi.SSLInfo.clientByte())
	var verify uint32
	if !pi.SSLInfo.CertVerified {
		verify = 1
	}
	verifyBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(verifyBytes, verify)
	value = append(value, verifyBytes...)

	for _, f := range fields {
		if len(f.value) == 0 {
			continue
		}
		sub := Tlv{Type: f.subtype, Value: f.value}
		value = append(value, sub.encode()...)
	}

	return pi.appendRaw(TlvSSL, value)
}

// --- Getters ---------------------------------------------------------------

// ALPN returns the first ALPN TLV's value, if any.
func (pi *PpInfo) ALPN() ([]byte, bool) {
	t, ok := pi.TLVs.first(TlvALPN)
	return t.Value, ok
}

// Authority returns the first AUTHORITY TLV's value, if any.
func (pi *PpInfo) Authority() ([]byte, bool) {
	t, ok := pi.TLVs.first(TlvAuthority)
	return t.Value, ok
}

// CRC32CValue returns the raw 4-byte CRC32C TLV value, if any.
func (pi *PpInfo) CRC32CValue() ([]byte, bool) {
	t, ok := pi.TLVs.first(TlvCRC32C)
	return t.Value, ok
}

// UniqueID returns the first UNIQUE_ID TLV's value, if any.
func (pi *PpInfo) UniqueID() ([]byte, bool) {
	t, ok := pi.TLVs.first(TlvUniqueID)
	return t.Value, ok
}

func usasciiString(v []byte, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	// Strip a single trailing NUL added at parse time by usascii().
	if n := len(v); n > 0 && v[n-1] == 0 {
		v = v[:n-1]
	}
	return string(v), true
}

// SSLVersion returns the flattened SSL_VERSION sub-TLV, if any was
// discovered while parsing a v2 header.
func (pi *PpInfo) SSLVersion() (string, bool) {
	t, ok := pi.TLVs.first(TlvSSLVersion)
	return usasciiString(t.Value, ok)
}

// SSLCipher returns the flattened SSL_CIPHER sub-TLV, if any.
func (pi *PpInfo) SSLCipher() (string, bool) {
	t, ok := pi.TLVs.first(TlvSSLCipher)
	return usasciiString(t.Value, ok)
}

// SSLSigAlg returns the flattened SSL_SIG_ALG sub-TLV, if any.
func (pi *PpInfo) SSLSigAlg() (string, bool) {
	t, ok := pi.TLVs.first(TlvSSLSigAlg)
	return usasciiString(t.Value, ok)
}

// SSLKeyAlg returns the flattened SSL_KEY_ALG sub-TLV, if any.
func (pi *PpInfo) SSLKeyAlg() (string, bool) {
	t, ok := pi.TLVs.first(TlvSSLKeyAlg)
	return usasciiString(t.Value, ok)
}

// SSLCN returns the flattened SSL_CN sub-TLV (UTF-8, not NUL-terminated).
func (pi *PpInfo) SSLCN() ([]byte, bool) {
	t, ok := pi.TLVs.first(TlvSSLCN)
	return t.Value, ok
}

// Netns returns the NETNS TLV value as a string, if any.
func (pi *PpInfo) Netns() (string, bool) {
	t, ok := pi.TLVs.first(TlvNetns)
	return usasciiString(t.Value, ok)
}

// AWSVpceID returns the AWS VPC endpoint id carried in an AWS TLV whose
// subtype matches SubtypeAWSVpceID.
func (pi *PpInfo) AWSVpceID() (string, bool) {
	v, ok := pi.TLVs.firstSubtype(TlvAWS, SubtypeAWSVpceID)
	return usasciiString(v, ok)
}

// AzureLinkID returns the little-endian Azure Private Link id carried in
// an AZURE TLV whose subtype matches SubtypeAzurePrivateLinkID.
func (pi *PpInfo) AzureLinkID() (uint32, bool) {
	v, ok := pi.TLVs.firstSubtype(TlvAzure, SubtypeAzurePrivateLinkID)
	if !ok || len(v) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(v), true
}
