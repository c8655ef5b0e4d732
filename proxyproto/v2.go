package proxyproto

import (
	"encoding/binary"
	"net"
)

var pp2Sig = [12]byte{0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A}

const pp2FixedHeaderLen = 16

// addrBlockLen returns the size of the fixed address block for family, or
// -1 for an unrecognized family.
func addrBlockLen(family AddressFamily) int {
	switch family {
	case AddressFamilyUnspec:
		return 0
	case AddressFamilyInet:
		return 12
	case AddressFamilyInet6:
		return 36
	case AddressFamilyUnix:
		return 216
	default:
		return -1
	}
}

// ParseV2 parses a version 2 (binary) PROXY protocol header from the start
// of buf. The v2 signature is assumed already matched by the caller (the
// dispatcher does this); ParseV2 starts its own validation at byte 12.
// buf is read-only: CRC32C verification computes over a private copy with
// the checksum field masked rather than mutating buf in place.
func ParseV2(buf []byte) (*PpInfo, int, error) {
	if len(buf) < pp2FixedHeaderLen {
		return nil, 0, newErr(ErrPP2Length)
	}

	verCmd := buf[12]
	if verCmd>>4 != 2 {
		return nil, 0, newErr(ErrPP2Version)
	}
	var local bool
	switch verCmd & 0x0f {
	case 0:
		local = true
	case 1:
		local = false
	default:
		return nil, 0, newErr(ErrPP2Cmd)
	}

	famByte := buf[13]
	family := AddressFamily(famByte >> 4)
	if family > AddressFamilyUnix {
		return nil, 0, newErr(ErrPP2AddrFamily)
	}
	transport := TransportProtocol(famByte & 0x0f)
	if transport > TransportProtocolDatagram {
		return nil, 0, newErr(ErrPP2TransportProtocol)
	}

	length := int(binary.BigEndian.Uint16(buf[14:16]))
	if len(buf) < pp2FixedHeaderLen+length {
		return nil, 0, newErr(ErrPP2Length)
	}

	addrLen := addrBlockLen(family)
	if length < addrLen {
		return nil, 0, newErr(ErrPP2Length)
	}

	pi := &PpInfo{
		AddressFamily:     family,
		TransportProtocol: transport,
		Local:             local,
	}

	addrStart := pp2FixedHeaderLen
	switch family {
	case AddressFamilyInet:
		src := net.IP(buf[addrStart : addrStart+4])
		dst := net.IP(buf[addrStart+4 : addrStart+8])
		pi.SrcAddr, pi.DstAddr = src.String(), dst.String()
		pi.SrcPort = binary.BigEndian.Uint16(buf[addrStart+8 : addrStart+10])
		pi.DstPort = binary.BigEndian.Uint16(buf[addrStart+10 : addrStart+12])
	case AddressFamilyInet6:
		src := net.IP(buf[addrStart : addrStart+16])
		dst := net.IP(buf[addrStart+16 : addrStart+32])
		pi.SrcAddr, pi.DstAddr = src.String(), dst.String()
		pi.SrcPort = binary.BigEndian.Uint16(buf[addrStart+32 : addrStart+34])
		pi.DstPort = binary.BigEndian.Uint16(buf[addrStart+34 : addrStart+36])
	case AddressFamilyUnix:
		pi.SrcAddr = trimNUL(buf[addrStart : addrStart+108])
		pi.DstAddr = trimNUL(buf[addrStart+108 : addrStart+216])
	}

	tlvStart := pp2FixedHeaderLen + addrLen
	tlvEnd := pp2FixedHeaderLen + length
	if err := walkV2TLVs(buf, tlvStart, tlvEnd, pi); err != nil {
		return nil, 0, err
	}

	return pi, pp2FixedHeaderLen + length, nil
}

func trimNUL(b []byte) string {
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// walkV2TLVs parses the TLV vector in buf[start:end], appending recognized
// types onto pi.TLVs.
func walkV2TLVs(buf []byte, start, end int, pi *PpInfo) error {
	pos := start
	for end-pos >= tlvHeaderSize {
		typ := TlvType(buf[pos])
		length := int(binary.BigEndian.Uint16(buf[pos+1 : pos+3]))
		if tlvHeaderSize+length > end-pos {
			return newErr(ErrPP2TLVLength)
		}
		value := buf[pos+tlvHeaderSize : pos+tlvHeaderSize+length]

		switch typ {
		case TlvALPN, TlvAuthority:
			pi.appendRaw(typ, value)
		case TlvCRC32C:
			if length != 4 {
				return newErr(ErrPP2TypeCRC32C)
			}
			if err := verifyCRC32C(buf, pp2FixedHeaderLen+crcHeaderLen(buf), pos+tlvHeaderSize, value); err != nil {
				return err
			}
			pi.appendRaw(typ, value)
			pi.CRC32C = true
		case TlvNOOP:
			// padding, ignored
		case TlvUniqueID:
			if length > 128 {
				return newErr(ErrPP2TypeUniqueID)
			}
			pi.appendRaw(typ, value)
		case TlvSSL:
			if err := parseSSLComposite(value, pi); err != nil {
				return err
			}
		case TlvNetns:
			pi.appendRaw(typ, usascii(value))
		case TlvAWS:
			if length < 1 {
				return newErr(ErrPP2TypeAWS)
			}
			if value[0] == SubtypeAWSVpceID {
				pi.appendRaw(typ, usascii(value))
			}
		case TlvAzure:
			if length < 5 {
				return newErr(ErrPP2TypeAzure)
			}
			if value[0] == SubtypeAzurePrivateLinkID {
				pi.appendRaw(typ, value)
			}
		default:
			// unknown type: silently skip
		}

		pos += tlvHeaderSize + length
	}
	return nil
}

// crcHeaderLen returns the declared v2 header length (the "len" field),
// used to bound the buffer CRC32C is computed over.
func crcHeaderLen(buf []byte) int {
	return int(binary.BigEndian.Uint16(buf[14:16]))
}

// verifyCRC32C checks that the received 4-byte checksum at
// buf[valueOffset:valueOffset+4] matches the CRC32C of the whole v2
// header with that 4-byte window masked to zero. buf itself is left
// untouched; the masked view is a private copy.
func verifyCRC32C(buf []byte, headerLen, valueOffset int, received []byte) error {
	masked := make([]byte, headerLen)
	copy(masked, buf[:headerLen])
	for i := 0; i < 4; i++ {
		masked[valueOffset+i] = 0
	}
	computed := make([]byte, 4)
	binary.LittleEndian.PutUint32(computed, crc32cChecksum(masked))
	if !bytesEqual(computed, received) {
		return newErr(ErrPP2TypeCRC32C)
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// parseSSLComposite walks the PP2_TYPE_SSL envelope's <client>/<verify>
// header and nested sub-TLVs, recording SslInfo on pi and flattening the
// recognized sub-TLVs as sibling entries on pi.TLVs.
func parseSSLComposite(value []byte, pi *PpInfo) error {
	if len(value) < 5 {
		return newErr(ErrPP2TypeSSL)
	}
	client := value[0]
	verify := value[1:5]
	// The verify word is opaque: equality-to-zero only, never byte-swapped.
	allZero := verify[0] == 0 && verify[1] == 0 && verify[2] == 0 && verify[3] == 0
	pi.SSLInfo = sslInfoFromClientByte(client, boolToVerify(allZero))

	sub := value[5:]
	pos := 0
	sawVersion := false
	for len(sub)-pos >= tlvHeaderSize {
		subType := TlvType(sub[pos])
		subLen := int(binary.BigEndian.Uint16(sub[pos+1 : pos+3]))
		if tlvHeaderSize+subLen > len(sub)-pos {
			return newErr(ErrPP2TypeSSL)
		}
		subValue := sub[pos+tlvHeaderSize : pos+tlvHeaderSize+subLen]

		switch subType {
		case TlvSSLVersion:
			sawVersion = true
			pi.appendRaw(subType, usascii(subValue))
		case TlvSSLCipher, TlvSSLSigAlg, TlvSSLKeyAlg:
			pi.appendRaw(subType, usascii(subValue))
		case TlvSSLCN:
			pi.appendRaw(subType, subValue)
		default:
			return newErr(ErrPP2TypeSSL)
		}

		pos += tlvHeaderSize + subLen
	}

	if pi.SSLInfo.SSL && !sawVersion {
		return newErr(ErrPP2TypeSSL)
	}
	return nil
}

func boolToVerify(allZero bool) uint32 {
	if allZero {
		return 0
	}
	return 1
}

// SerializeV2 renders pi as a version 2 PROXY protocol header, applying
// NOOP alignment padding and a CRC32C checksum if requested.
func SerializeV2(pi *PpInfo) ([]byte, error) {
	var cmd byte
	if pi.AddressFamily == AddressFamilyUnspec {
		if !pi.Local {
			return nil, newErr(ErrPP2Cmd)
		}
		cmd = 0
	} else {
		cmd = 1
	}

	if pi.TransportProtocol > TransportProtocolDatagram {
		return nil, newErr(ErrPP2TransportProtocol)
	}

	addrLen := addrBlockLen(pi.AddressFamily)
	if addrLen < 0 {
		return nil, newErr(ErrPP2AddrFamily)
	}
	addrBytes, err := encodeAddrBlock(pi, addrLen)
	if err != nil {
		return nil, err
	}

	payload := addrLen + encodedLen(pi.TLVs)
	if pi.CRC32C {
		payload += tlvHeaderSize + 4
	}
	total := pp2FixedHeaderLen + payload

	var paddingBytes int
	if pi.AlignmentPower > 1 {
		alignment := 1 << pi.AlignmentPower
		if total%alignment != 0 {
			padded := (total/alignment + 1) * alignment
			if padded-total < tlvHeaderSize {
				padded += alignment
			}
			paddingBytes = padded - pp2FixedHeaderLen - payload - tlvHeaderSize
			total = padded
			payload = padded - pp2FixedHeaderLen
		}
	}

	buf := make([]byte, 0, total)
	buf = append(buf, pp2Sig[:]...)
	buf = append(buf, 0x20|cmd)
	buf = append(buf, byte(pi.AddressFamily)<<4|byte(pi.TransportProtocol))
	lenField := make([]byte, 2)
	binary.BigEndian.PutUint16(lenField, uint16(payload))
	buf = append(buf, lenField...)
	buf = append(buf, addrBytes...)
	buf = appendEncoded(buf, pi.TLVs)

	if paddingBytes > 0 {
		noop := Tlv{Type: TlvNOOP, Value: make([]byte, paddingBytes)}
		buf = append(buf, noop.encode()...)
	}

	if pi.CRC32C {
		crcPlaceholderOffset := len(buf) + tlvHeaderSize
		crcTlv := Tlv{Type: TlvCRC32C, Value: make([]byte, 4)}
		buf = append(buf, crcTlv.encode()...)
		computed := crc32cChecksum(buf)
		binary.LittleEndian.PutUint32(buf[crcPlaceholderOffset:crcPlaceholderOffset+4], computed)
	}

	return buf, nil
}

func encodeAddrBlock(pi *PpInfo, addrLen int) ([]byte, error) {
	switch pi.AddressFamily {
	case AddressFamilyUnspec:
		return nil, nil
	case AddressFamilyInet:
		src := net.ParseIP(pi.SrcAddr)
		if src == nil || src.To4() == nil {
			return nil, newErr(ErrPP2IPv4SrcIP)
		}
		dst := net.ParseIP(pi.DstAddr)
		if dst == nil || dst.To4() == nil {
			return nil, newErr(ErrPP2IPv4DstIP)
		}
		out := make([]byte, addrLen)
		copy(out[0:4], src.To4())
		copy(out[4:8], dst.To4())
		binary.BigEndian.PutUint16(out[8:10], pi.SrcPort)
		binary.BigEndian.PutUint16(out[10:12], pi.DstPort)
		return out, nil
	case AddressFamilyInet6:
		src := net.ParseIP(pi.SrcAddr)
		if src == nil || src.To4() != nil {
			return nil, newErr(ErrPP2IPv6SrcIP)
		}
		dst := net.ParseIP(pi.DstAddr)
		if dst == nil || dst.To4() != nil {
			return nil, newErr(ErrPP2IPv6DstIP)
		}
		out := make([]byte, addrLen)
		copy(out[0:16], src.To16())
		copy(out[16:32], dst.To16())
		binary.BigEndian.PutUint16(out[32:34], pi.SrcPort)
		binary.BigEndian.PutUint16(out[34:36], pi.DstPort)
		return out, nil
	case AddressFamilyUnix:
		out := make([]byte, addrLen)
		copy(out[0:108], []byte(pi.SrcAddr))
		copy(out[108:216], []byte(pi.DstAddr))
		return out, nil
	default:
		return nil, newErr(ErrPP2AddrFamily)
	}
}

// CreateHeader builds a wire-format PROXY protocol header for pi using the
// requested version (1 or 2).
func CreateHeader(version int, pi *PpInfo) ([]byte, error) {
	switch version {
	case 1:
		return SerializeV1(pi)
	case 2:
		return SerializeV2(pi)
	default:
		return nil, newErr(ErrPPVersion)
	}
}

// CreateHealthcheckHeader builds the minimal 16-byte v2 LOCAL header used
// as a health-check probe: no address block, no TLVs.
func CreateHealthcheckHeader() ([]byte, error) {
	pi := &PpInfo{
		AddressFamily:     AddressFamilyUnspec,
		TransportProtocol: TransportProtocolUnspec,
		Local:             true,
	}
	return SerializeV2(pi)
}
