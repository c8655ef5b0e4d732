package proxyproto

import "hash/crc32"

// crc32cTable is the reflected Castagnoli table (poly 0x1EDC6F41) the
// PP2_TYPE_CRC32C TLV is checksummed with.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// crc32cChecksum computes the CRC32c checksum over buf the way the PROXY
// protocol v2 CRC32c TLV expects: init/xor 0xFFFFFFFF, which is exactly
// what crc32.Checksum with the Castagnoli table already does.
func crc32cChecksum(buf []byte) uint32 {
	return crc32.Checksum(buf, crc32cTable)
}
