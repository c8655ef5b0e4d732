// Package sniff scans a pcap capture file for PROXY protocol headers by
// running the dispatcher against the start of every TCP/UDP payload.
// Reading is offline via pcapgo, so no capture privileges or libpcap are
// needed.
package sniff

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"

	"github.com/avionblock/ppcodec/proxyproto"
)

// Finding is one PROXY protocol header discovered in a capture.
type Finding struct {
	PacketIndex int
	Timestamp   time.Time
	Transport   string // "TCP" or "UDP"
	FlowSrc     string // packet-level endpoints, not the header's
	FlowDst     string
	Consumed    int
	Version     int
	Info        *proxyproto.PpInfo
	Err         error // set when a header was recognized but malformed
}

// ScanFile reads the pcap file at path and returns every PROXY protocol
// header (or malformed-header error) found at the start of a transport
// payload. Packets whose payloads carry no header prefix are skipped
// silently, exactly as the dispatcher's return-0 contract prescribes.
func ScanFile(path string) ([]Finding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header of %s: %w", path, err)
	}

	var findings []Finding
	for index := 0; ; index++ {
		data, ci, err := r.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return findings, fmt.Errorf("failed to read packet %d: %w", index, err)
		}

		packet := gopacket.NewPacket(data, r.LinkType(), gopacket.Default)
		transport := packet.TransportLayer()
		if transport == nil {
			continue
		}
		payload := transport.LayerPayload()
		if len(payload) == 0 {
			continue
		}

		pi, n, err := proxyproto.ParseHeader(payload)
		if err == nil && n == 0 {
			continue
		}

		finding := Finding{
			PacketIndex: index,
			Timestamp:   ci.Timestamp,
			Transport:   transport.LayerType().String(),
			Consumed:    n,
			Info:        pi,
			Err:         err,
		}
		if net := packet.NetworkLayer(); net != nil {
			src, dst := net.NetworkFlow().Endpoints()
			tsrc, tdst := transport.TransportFlow().Endpoints()
			finding.FlowSrc = fmt.Sprintf("%s:%s", src, tsrc)
			finding.FlowDst = fmt.Sprintf("%s:%s", dst, tdst)
		}
		if err == nil {
			finding.Version = headerVersion(payload)
		}
		findings = append(findings, finding)
	}
	return findings, nil
}

// headerVersion reports which wire version the already-parsed payload
// prefix carried: 2 for the binary signature, 1 otherwise.
func headerVersion(payload []byte) int {
	if len(payload) >= 12 && payload[0] == 0x0D && payload[4] == 0x00 {
		return 2
	}
	return 1
}
