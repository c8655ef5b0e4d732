package proxyproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrc32cChecksum_KnownVector(t *testing.T) {
	// "123456789" is the textbook CRC32c/Castagnoli test vector.
	got := crc32cChecksum([]byte("123456789"))
	assert.Equal(t, uint32(0xE3069283), got)
}

func TestCrc32cChecksum_Empty(t *testing.T) {
	assert.Equal(t, uint32(0), crc32cChecksum(nil))
}
