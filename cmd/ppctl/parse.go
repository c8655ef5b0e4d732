package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avionblock/ppcodec/internal/ppctl/audit"
	"github.com/avionblock/ppcodec/proxyproto"
)

var (
	parseHex     bool
	parseAuditDB string
)

var parseCmd = &cobra.Command{
	Use:   "parse <file|hexstring>",
	Short: "Decode a PROXY protocol header from a file or hex string",
	Long: `Decode a PROXY protocol header from the start of the given input.

Examples:
  ppctl parse captured-prefix.bin
  ppctl parse --hex 0d0a0d0a000d0a515549540a20000000
  ppctl parse --hex 50524f585920544350342031302e302e302e312031302e302e302e3220312032360d0a`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var buf []byte
		var err error
		if parseHex {
			buf, err = hex.DecodeString(strings.TrimSpace(args[0]))
			if err != nil {
				exitWithError("invalid hex input", err)
			}
		} else {
			buf, err = os.ReadFile(args[0])
			if err != nil {
				exitWithError("failed to read input file", err)
			}
		}

		pi, n, err := proxyproto.ParseHeader(buf)
		if err != nil {
			ppErr := err.(*proxyproto.Error)
			fmt.Printf("malformed header: %v (code %d)\n", ppErr, ppErr.Code())
			os.Exit(1)
		}
		if n == 0 {
			fmt.Println("no PROXY protocol header found")
			return
		}

		printInfo(pi, n)

		if parseAuditDB != "" {
			store, err := audit.Open(parseAuditDB)
			if err != nil {
				exitWithError("failed to open audit db", err)
			}
			defer store.Close()
			version := 1
			if buf[0] == 0x0D {
				version = 2
			}
			if err := store.RecordHeader(context.Background(), pi, version, time.Now()); err != nil {
				exitWithError("failed to record header", err)
			}
		}
	},
}

func printInfo(pi *proxyproto.PpInfo, consumed int) {
	fmt.Printf("consumed:  %d bytes\n", consumed)
	fmt.Printf("family:    %s\n", pi.AddressFamily)
	fmt.Printf("protocol:  %s\n", pi.TransportProtocol)
	fmt.Printf("local:     %t\n", pi.Local)
	if pi.AddressFamily != proxyproto.AddressFamilyUnspec {
		fmt.Printf("src:       %s:%d\n", pi.SrcAddr, pi.SrcPort)
		fmt.Printf("dst:       %s:%d\n", pi.DstAddr, pi.DstPort)
	}
	if pi.CRC32C {
		fmt.Printf("crc32c:    verified\n")
	}
	if pi.SSLInfo.SSL {
		fmt.Printf("ssl:       client=%t cert_verified=%t\n", pi.SSLInfo.SSL, pi.SSLInfo.CertVerified)
		if v, ok := pi.SSLVersion(); ok {
			fmt.Printf("ssl ver:   %s\n", v)
		}
		if c, ok := pi.SSLCipher(); ok {
			fmt.Printf("cipher:    %s\n", c)
		}
	}
	for _, tlv := range pi.TLVs {
		fmt.Printf("tlv:       %s\n", tlv)
	}
}

func init() {
	parseCmd.Flags().BoolVar(&parseHex, "hex", false, "treat the argument as a hex string instead of a file path")
	parseCmd.Flags().StringVar(&parseAuditDB, "audit-db", "", "also record the parsed header into this SQLite audit log")
	rootCmd.AddCommand(parseCmd)
}
