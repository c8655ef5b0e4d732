package proxyproto

var pp1Prefix = [5]byte{'P', 'R', 'O', 'X', 'Y'}

// minV1Len and minV2Len are the shortest prefixes ParseHeader needs before
// it will commit to a version.
const (
	minV1Len = 8
	minV2Len = 16
)

// ParseHeader peeks at the start of buf and routes to the matching parser.
// It returns the number of bytes consumed on success, 0 if buf carries no
// recognizable PROXY protocol header (the caller may proceed without one),
// or an error if a header was recognized but malformed.
//
// ParseHeader does not itself allocate a PpInfo on the "no header" path;
// callers that need the parsed result use pi.
func ParseHeader(buf []byte) (*PpInfo, int, error) {
	if len(buf) >= minV2Len && matchesV2Sig(buf) {
		return ParseV2(buf)
	}
	if len(buf) >= minV1Len && matchesV1Prefix(buf) {
		return ParseV1(buf)
	}
	return nil, 0, nil
}

func matchesV2Sig(buf []byte) bool {
	for i := 0; i < len(pp2Sig); i++ {
		if buf[i] != pp2Sig[i] {
			return false
		}
	}
	return true
}

func matchesV1Prefix(buf []byte) bool {
	for i := 0; i < len(pp1Prefix); i++ {
		if buf[i] != pp1Prefix[i] {
			return false
		}
	}
	return true
}
