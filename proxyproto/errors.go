package proxyproto

import "fmt"

// ErrorKind is the closed taxonomy of error conditions this package
// returns. The numbering is stable so Code() yields a fixed negative
// value per condition that callers can match on.
type ErrorKind int

const (
	ErrPPVersion ErrorKind = iota + 1
	ErrPP2Sig
	ErrPP2Version
	ErrPP2Cmd
	ErrPP2AddrFamily
	ErrPP2TransportProtocol
	ErrPP2Length
	ErrPP2IPv4SrcIP
	ErrPP2IPv4DstIP
	ErrPP2IPv6SrcIP
	ErrPP2IPv6DstIP
	ErrPP2TLVLength
	ErrPP2TypeCRC32C
	ErrPP2TypeSSL
	ErrPP2TypeUniqueID
	ErrPP2TypeAWS
	ErrPP2TypeAzure
	ErrPP1CRLF
	ErrPP1Proxy
	ErrPP1Space
	ErrPP1TransportFamily
	ErrPP1IPv4SrcIP
	ErrPP1IPv4DstIP
	ErrPP1IPv6SrcIP
	ErrPP1IPv6DstIP
	ErrPP1SrcPort
	ErrPP1DstPort
	ErrHeapAlloc
)

var errorMessages = map[ErrorKind]string{
	ErrPPVersion:            "invalid PROXY protocol version given, only 1 and 2 are valid",
	ErrPP2Sig:               "v2 PROXY protocol header: wrong signature",
	ErrPP2Version:           "v2 PROXY protocol header: wrong version",
	ErrPP2Cmd:               "v2 PROXY protocol header: wrong command",
	ErrPP2AddrFamily:        "v2 PROXY protocol header: wrong address family",
	ErrPP2TransportProtocol: "v2 PROXY protocol header: wrong transport protocol",
	ErrPP2Length:            "v2 PROXY protocol header: length",
	ErrPP2IPv4SrcIP:         "v2 PROXY protocol header: invalid IPv4 src IP",
	ErrPP2IPv4DstIP:         "v2 PROXY protocol header: invalid IPv4 dst IP",
	ErrPP2IPv6SrcIP:         "v2 PROXY protocol header: invalid IPv6 src IP",
	ErrPP2IPv6DstIP:         "v2 PROXY protocol header: invalid IPv6 dst IP",
	ErrPP2TLVLength:         "v2 PROXY protocol header: invalid TLV vector's length",
	ErrPP2TypeCRC32C:        "v2 PROXY protocol header: invalid PP2_TYPE_CRC32C",
	ErrPP2TypeSSL:           "v2 PROXY protocol header: invalid PP2_TYPE_SSL",
	ErrPP2TypeUniqueID:      "v2 PROXY protocol header: invalid PP2_TYPE_UNIQUE_ID",
	ErrPP2TypeAWS:           "v2 PROXY protocol header: invalid PP2_TYPE_AWS",
	ErrPP2TypeAzure:         "v2 PROXY protocol header: invalid PP2_TYPE_AZURE",
	ErrPP1CRLF:              `v1 PROXY protocol header: "\r\n" is missing`,
	ErrPP1Proxy:             `v1 PROXY protocol header: "PROXY" is missing`,
	ErrPP1Space:             "v1 PROXY protocol header: space is missing",
	ErrPP1TransportFamily:   "v1 PROXY protocol header: wrong transport protocol or address family",
	ErrPP1IPv4SrcIP:         "v1 PROXY protocol header: invalid IPv4 src IP",
	ErrPP1IPv4DstIP:         "v1 PROXY protocol header: invalid IPv4 dst IP",
	ErrPP1IPv6SrcIP:         "v1 PROXY protocol header: invalid IPv6 src IP",
	ErrPP1IPv6DstIP:         "v1 PROXY protocol header: invalid IPv6 dst IP",
	ErrPP1SrcPort:           "v1 PROXY protocol header: invalid src port",
	ErrPP1DstPort:           "v1 PROXY protocol header: invalid dst port",
	ErrHeapAlloc:            "heap memory allocation failure",
}

// Error is the concrete error type every parse/serialize failure in this
// package returns.
type Error struct {
	Kind ErrorKind
}

func (e *Error) Error() string {
	msg, ok := errorMessages[e.Kind]
	if !ok {
		return "proxyproto: unknown error"
	}
	return msg
}

// Code returns the stable negative code for this error's kind.
func (e *Error) Code() int32 {
	return -int32(e.Kind)
}

func newErr(kind ErrorKind) *Error {
	return &Error{Kind: kind}
}

// Strerror maps a negative error code, as returned by Error.Code, back to
// its human-readable message. It returns an error for any code outside
// the closed taxonomy.
func Strerror(code int32) (string, error) {
	kind := ErrorKind(-code)
	msg, ok := errorMessages[kind]
	if !ok {
		return "", fmt.Errorf("proxyproto: unknown error code %d", code)
	}
	return msg, nil
}
