package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionblock/ppcodec/proxyproto"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pi := &proxyproto.PpInfo{
		AddressFamily:     proxyproto.AddressFamilyInet,
		TransportProtocol: proxyproto.TransportProtocolStream,
		SrcAddr:           "192.168.0.1",
		DstAddr:           "192.168.0.11",
		SrcPort:           56324,
		DstPort:           443,
		CRC32C:            true,
	}
	require.True(t, pi.AddALPN([]byte("h2")))

	at := time.Unix(1700000000, 0)
	require.NoError(t, s.RecordHeader(ctx, pi, 2, at))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, 2, e.Version)
	assert.Equal(t, "INET", e.Family)
	assert.Equal(t, "STREAM", e.Protocol)
	assert.Equal(t, "192.168.0.1", e.SrcAddr)
	assert.Equal(t, uint16(56324), e.SrcPort)
	assert.Equal(t, "0x01", e.TlvTypes)
	assert.True(t, e.CRC32C)
	assert.Equal(t, at.Unix(), e.Timestamp.Unix())
}

func TestStore_RecentOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		pi := &proxyproto.PpInfo{
			AddressFamily:     proxyproto.AddressFamilyInet,
			TransportProtocol: proxyproto.TransportProtocolStream,
			SrcAddr:           "10.0.0.1",
			DstAddr:           "10.0.0.2",
			SrcPort:           uint16(1000 + i),
			DstPort:           80,
		}
		require.NoError(t, s.RecordHeader(ctx, pi, 1, time.Unix(int64(i), 0)))
	}

	entries, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest first.
	assert.Equal(t, uint16(1004), entries[0].SrcPort)
	assert.Equal(t, uint16(1002), entries[2].SrcPort)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}
