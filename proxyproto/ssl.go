package proxyproto

// SSL <client> bit field, as laid out in the PP2_TYPE_SSL TLV value.
const (
	sslClientSSL      byte = 0x01
	sslClientCertConn byte = 0x02
	sslClientCertSess byte = 0x04
)

// SslInfo flattens the SSL TLV's <client> bitfield and <verify> word into
// boolean flags.
type SslInfo struct {
	SSL              bool
	CertInConnection bool
	CertInSession    bool
	CertVerified     bool
}

// clientByte composes the <client> bitfield for a v2 SSL TLV. Bit 1
// comes from CertInConnection and bit 2 from CertInSession
// independently.
func (s SslInfo) clientByte() byte {
	var b byte
	if s.SSL {
		b |= sslClientSSL
	}
	if s.CertInConnection {
		b |= sslClientCertConn
	}
	if s.CertInSession {
		b |= sslClientCertSess
	}
	return b
}

func sslInfoFromClientByte(client byte, verify uint32) SslInfo {
	return SslInfo{
		SSL:              client&sslClientSSL != 0,
		CertInConnection: client&sslClientCertConn != 0,
		CertInSession:    client&sslClientCertSess != 0,
		CertVerified:     verify == 0,
	}
}
