package proxyproto

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// TlvType is the one-byte type discriminator of a version 2 TLV record.
type TlvType uint8

const (
	TlvALPN       TlvType = 0x01
	TlvAuthority  TlvType = 0x02
	TlvCRC32C     TlvType = 0x03
	TlvNOOP       TlvType = 0x04
	TlvUniqueID   TlvType = 0x05
	TlvSSL        TlvType = 0x20
	TlvSSLVersion TlvType = 0x21
	TlvSSLCN      TlvType = 0x22
	TlvSSLCipher  TlvType = 0x23
	TlvSSLSigAlg  TlvType = 0x24
	TlvSSLKeyAlg  TlvType = 0x25
	TlvNetns      TlvType = 0x30
	TlvAWS        TlvType = 0xEA
	TlvAzure      TlvType = 0xEE
)

// AWS/Azure subtypes, nested in the first byte of those TLVs' values.
const (
	SubtypeAWSVpceID          byte = 0x01
	SubtypeAzurePrivateLinkID byte = 0x01
)

// tlvHeaderSize is the 3-byte type+length prefix every TLV carries.
const tlvHeaderSize = 3

// Tlv is a single Type-Length-Value record. Length is not stored
// separately; it is always len(Value), which also guards against the
// stored length field and slice length drifting apart.
type Tlv struct {
	Type  TlvType
	Value []byte
}

func (t Tlv) String() string {
	return fmt.Sprintf("Tlv{type=0x%02x, len=%d}", byte(t.Type), len(t.Value))
}

// encode renders the TLV in its wire form: type, big-endian length, value.
func (t Tlv) encode() []byte {
	out := make([]byte, tlvHeaderSize+len(t.Value))
	out[0] = byte(t.Type)
	binary.BigEndian.PutUint16(out[1:3], uint16(len(t.Value)))
	copy(out[3:], t.Value)
	return out
}

// TlvList is an ordered, append-only sequence of TLV records. Getters
// return the first match in appearance order.
type TlvList []Tlv

func (l TlvList) String() string {
	if len(l) == 0 {
		return "[]"
	}
	parts := make([]string, len(l))
	for i, tlv := range l {
		parts[i] = tlv.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (l TlvList) first(t TlvType) (Tlv, bool) {
	for _, tlv := range l {
		if tlv.Type == t {
			return tlv, true
		}
	}
	return Tlv{}, false
}

// firstSubtype looks up a TLV whose type matches t and whose first value
// byte matches subtype (AWS VPCE id, Azure link id), returning the value
// with the subtype byte stripped.
func (l TlvList) firstSubtype(t TlvType, subtype byte) ([]byte, bool) {
	tlv, ok := l.first(t)
	if !ok || len(tlv.Value) == 0 || tlv.Value[0] != subtype {
		return nil, false
	}
	return tlv.Value[1:], true
}

func encodedLen(l TlvList) int {
	n := 0
	for _, t := range l {
		n += tlvHeaderSize + len(t.Value)
	}
	return n
}

func appendEncoded(buf []byte, l TlvList) []byte {
	for _, t := range l {
		buf = append(buf, t.encode()...)
	}
	return buf
}

// usascii copies value into a buffer one byte longer with a trailing NUL,
// the stored form for SSL_VERSION/CIPHER/SIG_ALG/KEY_ALG and NETNS
// fields.
func usascii(value []byte) []byte {
	out := make([]byte, len(value)+1)
	copy(out, value)
	return out
}
