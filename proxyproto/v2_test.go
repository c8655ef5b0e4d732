package proxyproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeV2_HealthcheckMinimal(t *testing.T) {
	buf, err := CreateHealthcheckHeader()
	require.NoError(t, err)
	require.Len(t, buf, 16)
	assert.Equal(t, byte(0x20), buf[12])
	assert.Equal(t, byte(0x00), buf[13])
	assert.Equal(t, []byte{0x00, 0x00}, buf[14:16])

	pi, n, err := ParseV2(buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.True(t, pi.Local)
	assert.Equal(t, AddressFamilyUnspec, pi.AddressFamily)
}

func TestSerializeV2_ProxyCmdRequiresAddress(t *testing.T) {
	pi := &PpInfo{AddressFamily: AddressFamilyUnspec, Local: false}

	_, err := SerializeV2(pi)
	require.Error(t, err)
	assert.Equal(t, ErrPP2Cmd, err.(*Error).Kind)
}

func TestV2_IPv6WithALPNAndCRC32C_RoundTrip(t *testing.T) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyInet6,
		TransportProtocol: TransportProtocolStream,
		SrcAddr:           "::1",
		DstAddr:           "::2",
		SrcPort:           1,
		DstPort:           2,
		CRC32C:            true,
	}
	pi.AddALPN([]byte("h2"))

	buf, err := SerializeV2(pi)
	require.NoError(t, err)

	reparsed, n, err := ParseV2(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, AddressFamilyInet6, reparsed.AddressFamily)
	assert.Equal(t, "::1", reparsed.SrcAddr)
	assert.Equal(t, "::2", reparsed.DstAddr)
	assert.True(t, reparsed.CRC32C)
	alpn, ok := reparsed.ALPN()
	require.True(t, ok)
	assert.Equal(t, []byte("h2"), alpn)
}

func TestV2_CRC32C_ByteFlipDetected(t *testing.T) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyInet6,
		TransportProtocol: TransportProtocolStream,
		SrcAddr:           "::1",
		DstAddr:           "::2",
		SrcPort:           1,
		DstPort:           2,
		CRC32C:            true,
	}
	pi.AddALPN([]byte("h2"))

	buf, err := SerializeV2(pi)
	require.NoError(t, err)

	// Flip a byte inside the address block, well clear of the CRC field.
	buf[16] ^= 0xFF

	_, _, err = ParseV2(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP2TypeCRC32C, err.(*Error).Kind)
}

func TestV2_SSLComposite_RoundTrip(t *testing.T) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyInet,
		TransportProtocol: TransportProtocolStream,
		SrcAddr:           "10.0.0.1",
		DstAddr:           "10.0.0.2",
		SrcPort:           1,
		DstPort:           2,
		SSLInfo: SslInfo{
			SSL:              true,
			CertInConnection: true,
			CertVerified:     true,
		},
	}
	ok := pi.AddSSL("TLSv1.3", "TLS_AES_128_GCM_SHA256", "", "", nil)
	require.True(t, ok)

	buf, err := SerializeV2(pi)
	require.NoError(t, err)

	reparsed, n, err := ParseV2(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.True(t, reparsed.SSLInfo.SSL)
	assert.True(t, reparsed.SSLInfo.CertInConnection)
	assert.False(t, reparsed.SSLInfo.CertInSession)
	assert.True(t, reparsed.SSLInfo.CertVerified)

	version, ok := reparsed.SSLVersion()
	require.True(t, ok)
	assert.Equal(t, "TLSv1.3", version)

	cipher, ok := reparsed.SSLCipher()
	require.True(t, ok)
	assert.Equal(t, "TLS_AES_128_GCM_SHA256", cipher)
}

func TestV2_SSL_MissingVersionWhenSSLSetIsError(t *testing.T) {
	// Hand-build an SSL TLV whose <client> has the SSL bit set but no
	// SSL_VERSION sub-TLV.
	sslValue := []byte{sslClientSSL, 0, 0, 0, 0}
	sslTLV := Tlv{Type: TlvSSL, Value: sslValue}

	pi := &PpInfo{
		AddressFamily:     AddressFamilyUnspec,
		TransportProtocol: TransportProtocolUnspec,
		Local:             true,
	}
	pi.TLVs = append(pi.TLVs, sslTLV)

	buf, err := SerializeV2(pi)
	require.NoError(t, err)

	_, _, err = ParseV2(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP2TypeSSL, err.(*Error).Kind)
}

func TestV2_Alignment(t *testing.T) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyInet,
		TransportProtocol: TransportProtocolStream,
		SrcAddr:           "1.2.3.4",
		DstAddr:           "5.6.7.8",
		SrcPort:           1,
		DstPort:           2,
		AlignmentPower:    5,
	}
	pi.AddALPN([]byte("h")) // 12-byte addr block + 3+1 ALPN = 16 bytes payload, total 32 already

	buf, err := SerializeV2(pi)
	require.NoError(t, err)
	assert.Equal(t, 0, len(buf)%32)

	_, n, err := ParseV2(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
}

func TestV2_AlignmentWithNOOPPadding(t *testing.T) {
	// Natural length: 16 (fixed) + 12 (addr) + 3 (ALPN hdr) + 2 (ALPN "h2")
	// = 33 bytes total. alignment_power=6 => 64. Padding bytes inside the
	// NOOP TLV = 64-33-3 = 28.
	pi := &PpInfo{
		AddressFamily:     AddressFamilyInet,
		TransportProtocol: TransportProtocolStream,
		SrcAddr:           "1.2.3.4",
		DstAddr:           "5.6.7.8",
		SrcPort:           1,
		DstPort:           2,
		AlignmentPower:    6,
	}
	pi.AddALPN([]byte("h2"))

	buf, err := SerializeV2(pi)
	require.NoError(t, err)
	assert.Equal(t, 64, len(buf))

	// The byte right after the ALPN TLV (16+12+3+2=33) must be the NOOP
	// type, with a 28-byte zero-filled value.
	assert.Equal(t, byte(TlvNOOP), buf[33])
	noopLen := int(buf[34])<<8 | int(buf[35])
	assert.Equal(t, 28, noopLen)

	_, n, err := ParseV2(buf)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
}

func TestV2_AlignmentBumpsWhenPaddingTooSmall(t *testing.T) {
	// natural total = 16 (fixed) + 3 + 11 (ALPN "hello-world") = 30 bytes.
	// Rounding up to the next multiple of 32 leaves only 2 spare bytes,
	// less than the 3 a NOOP TLV header needs, so the serializer must
	// bump to the alignment after that (64).
	pi := &PpInfo{AddressFamily: AddressFamilyUnspec, Local: true, AlignmentPower: 5}
	pi.AddALPN([]byte("hello-world"))

	buf, err := SerializeV2(pi)
	require.NoError(t, err)
	assert.Equal(t, 64, len(buf))

	_, n, err := ParseV2(buf)
	require.NoError(t, err)
	assert.Equal(t, 64, n)
}

func TestV2_UniqueIDBoundary(t *testing.T) {
	pi := &PpInfo{AddressFamily: AddressFamilyUnspec, Local: true}
	ok := pi.AddUniqueID(make([]byte, 128))
	assert.True(t, ok)

	ok = pi.AddUniqueID(make([]byte, 129))
	assert.False(t, ok)
}

func TestV2_UniqueIDParseRejectsOver128(t *testing.T) {
	pi := &PpInfo{AddressFamily: AddressFamilyUnspec, Local: true}
	// Bypass the builder's own guard to exercise the parser's check.
	pi.TLVs = append(pi.TLVs, Tlv{Type: TlvUniqueID, Value: make([]byte, 129)})

	buf, err := SerializeV2(pi)
	require.NoError(t, err)

	_, _, err = ParseV2(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP2TypeUniqueID, err.(*Error).Kind)
}

func TestV2_BufferTooShortForV2Dispatch(t *testing.T) {
	buf := make([]byte, 15)
	copy(buf, pp2Sig[:])

	pi, n, err := ParseHeader(buf)
	require.NoError(t, err)
	assert.Nil(t, pi)
	assert.Equal(t, 0, n)
}

func TestV2_AWSVpceID_RoundTrip(t *testing.T) {
	pi := &PpInfo{AddressFamily: AddressFamilyUnspec, Local: true}
	ok := pi.AddAWSVpceID("vpce-08d2bf15fac5001c9")
	require.True(t, ok)

	buf, err := SerializeV2(pi)
	require.NoError(t, err)

	reparsed, _, err := ParseV2(buf)
	require.NoError(t, err)
	id, ok := reparsed.AWSVpceID()
	require.True(t, ok)
	assert.Equal(t, "vpce-08d2bf15fac5001c9", id)
}

func TestV2_AzureLinkID_RoundTrip(t *testing.T) {
	pi := &PpInfo{AddressFamily: AddressFamilyUnspec, Local: true}
	ok := pi.AddAzureLinkID(0xDEADBEEF)
	require.True(t, ok)

	buf, err := SerializeV2(pi)
	require.NoError(t, err)

	reparsed, _, err := ParseV2(buf)
	require.NoError(t, err)
	id, ok := reparsed.AzureLinkID()
	require.True(t, ok)
	assert.Equal(t, uint32(0xDEADBEEF), id)
}

func TestV2_UnixAddressRoundTrip(t *testing.T) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyUnix,
		TransportProtocol: TransportProtocolStream,
		SrcAddr:           "/tmp/src.sock",
		DstAddr:           "/tmp/dst.sock",
	}

	buf, err := SerializeV2(pi)
	require.NoError(t, err)
	require.Len(t, buf, 16+216)

	reparsed, n, err := ParseV2(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, "/tmp/src.sock", reparsed.SrcAddr)
	assert.Equal(t, "/tmp/dst.sock", reparsed.DstAddr)
}

func TestV2_UnknownTLVSilentlySkipped(t *testing.T) {
	pi := &PpInfo{AddressFamily: AddressFamilyUnspec, Local: true}
	pi.TLVs = append(pi.TLVs, Tlv{Type: TlvType(0x99), Value: []byte("ignored")})

	buf, err := SerializeV2(pi)
	require.NoError(t, err)

	reparsed, n, err := ParseV2(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Empty(t, reparsed.TLVs)
}

func TestV2_TLVLengthOverrunsBuffer(t *testing.T) {
	buf, err := CreateHealthcheckHeader()
	require.NoError(t, err)
	// Append a TLV header claiming far more value bytes than exist, fix up
	// the declared header length to cover just the 3-byte TLV header.
	buf[15] = 3
	buf = append(buf, byte(TlvALPN), 0xFF, 0xFF)

	_, _, err = ParseV2(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP2TLVLength, err.(*Error).Kind)
}

func TestV2_InvalidVersionNibble(t *testing.T) {
	buf, err := CreateHealthcheckHeader()
	require.NoError(t, err)
	buf[12] = 0x10 // version nibble 1, not 2

	_, _, err = ParseV2(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP2Version, err.(*Error).Kind)
}

func TestV2_InvalidAddressFamilyNibble(t *testing.T) {
	buf, err := CreateHealthcheckHeader()
	require.NoError(t, err)
	buf[13] = 0xF0 // family nibble 15, unrecognized

	_, _, err = ParseV2(buf)
	require.Error(t, err)
	assert.Equal(t, ErrPP2AddrFamily, err.(*Error).Kind)
}

func TestV2_ParseV4RoundTrip(t *testing.T) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyInet,
		TransportProtocol: TransportProtocolDatagram,
		SrcAddr:           "203.0.113.1",
		DstAddr:           "203.0.113.2",
		SrcPort:           40000,
		DstPort:           53,
	}

	buf, err := SerializeV2(pi)
	require.NoError(t, err)
	assert.Len(t, buf, 28)

	reparsed, n, err := ParseV2(buf)
	require.NoError(t, err)
	assert.Equal(t, 28, n)
	assert.Equal(t, TransportProtocolDatagram, reparsed.TransportProtocol)
	assert.Equal(t, "203.0.113.1", reparsed.SrcAddr)
	assert.Equal(t, uint16(40000), reparsed.SrcPort)
}

func TestCreateHeader_InvalidVersion(t *testing.T) {
	_, err := CreateHeader(3, &PpInfo{})
	require.Error(t, err)
	assert.Equal(t, ErrPPVersion, err.(*Error).Kind)
}
