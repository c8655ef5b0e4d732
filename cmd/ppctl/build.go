package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/avionblock/ppcodec/proxyproto"
)

var (
	buildVersion  int
	buildFamily   string
	buildProtocol string
	buildLocal    bool
	buildSrc      string
	buildDst      string
	buildSrcPort  uint16
	buildDstPort  uint16

	buildALPN       string
	buildAuthority  string
	buildUniqueID   string
	buildNoUniqueID bool
	buildNetns      string
	buildVpceID     string
	buildCRC32C     bool
	buildAlign      uint8

	buildSSLVersion string
	buildSSLCipher  string

	buildOut string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Construct a PROXY protocol header from flags",
	Long: `Construct a PROXY protocol header and print it as hex (or write the
raw bytes with --out). Unless --no-unique-id is given, a v2 header always
carries a UNIQUE_ID TLV, defaulting to a freshly generated UUID; v1
headers carry no TLVs.

Examples:
  ppctl build --family inet --src 192.168.0.1 --dst 192.168.0.11 --src-port 56324 --dst-port 443
  ppctl build --version 1 --family inet6 --src ::1 --dst ::2 --src-port 1 --dst-port 2
  ppctl build --family inet --src 10.0.0.1 --dst 10.0.0.2 --src-port 1 --dst-port 2 --crc32c --align 5`,
	Run: func(cmd *cobra.Command, args []string) {
		pi := &proxyproto.PpInfo{
			Local:          buildLocal,
			SrcAddr:        buildSrc,
			DstAddr:        buildDst,
			SrcPort:        buildSrcPort,
			DstPort:        buildDstPort,
			CRC32C:         buildCRC32C,
			AlignmentPower: buildAlign,
		}

		switch buildFamily {
		case "unspec":
			pi.AddressFamily = proxyproto.AddressFamilyUnspec
			pi.Local = true
		case "inet":
			pi.AddressFamily = proxyproto.AddressFamilyInet
		case "inet6":
			pi.AddressFamily = proxyproto.AddressFamilyInet6
		case "unix":
			pi.AddressFamily = proxyproto.AddressFamilyUnix
		default:
			exitWithError(fmt.Sprintf("unknown family %q (unspec, inet, inet6, unix)", buildFamily), nil)
		}

		switch buildProtocol {
		case "unspec":
			pi.TransportProtocol = proxyproto.TransportProtocolUnspec
		case "stream", "tcp":
			pi.TransportProtocol = proxyproto.TransportProtocolStream
		case "datagram", "udp":
			pi.TransportProtocol = proxyproto.TransportProtocolDatagram
		default:
			exitWithError(fmt.Sprintf("unknown protocol %q (unspec, stream, datagram)", buildProtocol), nil)
		}

		if buildALPN != "" && !pi.AddALPN([]byte(buildALPN)) {
			exitWithError("failed to add ALPN TLV", nil)
		}
		if buildAuthority != "" && !pi.AddAuthority([]byte(buildAuthority)) {
			exitWithError("failed to add AUTHORITY TLV", nil)
		}
		if !buildNoUniqueID {
			id := buildUniqueID
			if id == "" {
				id = uuid.New().String()
			}
			if !pi.AddUniqueID([]byte(id)) {
				exitWithError("failed to add UNIQUE_ID TLV (max 128 bytes)", nil)
			}
		}
		if buildNetns != "" && !pi.AddNetns(buildNetns) {
			exitWithError("failed to add NETNS TLV", nil)
		}
		if buildVpceID != "" && !pi.AddAWSVpceID(buildVpceID) {
			exitWithError("failed to add AWS VPCE ID TLV", nil)
		}
		if buildSSLVersion != "" || buildSSLCipher != "" {
			pi.SSLInfo.SSL = true
			if !pi.AddSSL(buildSSLVersion, buildSSLCipher, "", "", nil) {
				exitWithError("failed to add SSL TLV", nil)
			}
		}

		header, err := proxyproto.CreateHeader(buildVersion, pi)
		if err != nil {
			exitWithError("failed to build header", err)
		}

		if buildOut != "" {
			if err := os.WriteFile(buildOut, header, 0o644); err != nil {
				exitWithError("failed to write output file", err)
			}
			log.WithField("bytes", len(header)).Info("header written")
			return
		}
		fmt.Println(hex.EncodeToString(header))
	},
}

func init() {
	buildCmd.Flags().IntVar(&buildVersion, "version", 2, "PROXY protocol version (1 or 2)")
	buildCmd.Flags().StringVar(&buildFamily, "family", "unspec", "address family (unspec, inet, inet6, unix)")
	buildCmd.Flags().StringVar(&buildProtocol, "protocol", "stream", "transport protocol (unspec, stream, datagram)")
	buildCmd.Flags().BoolVar(&buildLocal, "local", false, "set the LOCAL flag; v2 emits the LOCAL command only for --family unspec, which sets it regardless")
	buildCmd.Flags().StringVar(&buildSrc, "src", "", "source address")
	buildCmd.Flags().StringVar(&buildDst, "dst", "", "destination address")
	buildCmd.Flags().Uint16Var(&buildSrcPort, "src-port", 0, "source port")
	buildCmd.Flags().Uint16Var(&buildDstPort, "dst-port", 0, "destination port")

	buildCmd.Flags().StringVar(&buildALPN, "alpn", "", "ALPN TLV payload")
	buildCmd.Flags().StringVar(&buildAuthority, "authority", "", "AUTHORITY TLV payload")
	buildCmd.Flags().StringVar(&buildUniqueID, "unique-id", "", "UNIQUE_ID TLV payload (default: fresh UUID)")
	buildCmd.Flags().BoolVar(&buildNoUniqueID, "no-unique-id", false, "omit the UNIQUE_ID TLV entirely")
	buildCmd.Flags().StringVar(&buildNetns, "netns", "", "NETNS TLV payload")
	buildCmd.Flags().StringVar(&buildVpceID, "aws-vpce-id", "", "AWS VPC endpoint id TLV payload")
	buildCmd.Flags().BoolVar(&buildCRC32C, "crc32c", false, "append a CRC32C checksum TLV (v2 only)")
	buildCmd.Flags().Uint8Var(&buildAlign, "align", 0, "pad the v2 header to a multiple of 2^N bytes (N >= 2)")

	buildCmd.Flags().StringVar(&buildSSLVersion, "ssl-version", "", "SSL composite: TLS version string")
	buildCmd.Flags().StringVar(&buildSSLCipher, "ssl-cipher", "", "SSL composite: cipher string")

	buildCmd.Flags().StringVar(&buildOut, "out", "", "write raw header bytes to this file instead of printing hex")
	rootCmd.AddCommand(buildCmd)
}
