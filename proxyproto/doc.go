// Package proxyproto parses and constructs HAProxy PROXY protocol headers,
// both the human-readable version 1 line format and the binary version 2
// format, including the version 2 TLV extensions (ALPN, authority,
// unique connection id, the SSL composite, network namespace, and the
// AWS/Azure link-identifier TLVs).
//
// The package is a pure codec: apart from the ReadHeader convenience,
// which peeks at a caller-supplied *bufio.Reader, every exported function
// works on byte slices. Nothing here opens a socket,
// buffers partial reads, or decides whether a header should be trusted.
package proxyproto
