package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avionblock/ppcodec/internal/ppctl/audit"
	"github.com/avionblock/ppcodec/internal/ppctl/sniff"
)

var sniffAuditDB string

var sniffCmd = &cobra.Command{
	Use:   "sniff <capture.pcap>",
	Short: "Scan a pcap capture for PROXY protocol headers",
	Long: `Scan an offline pcap capture, running the header dispatcher against
the start of every TCP/UDP payload, and report each PROXY protocol header
found - including recognized-but-malformed ones.

Examples:
  ppctl sniff traffic.pcap
  ppctl sniff traffic.pcap --audit-db headers.db`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		findings, err := sniff.ScanFile(args[0])
		if err != nil {
			exitWithError("scan failed", err)
		}

		var store *audit.Store
		if sniffAuditDB != "" {
			store, err = audit.Open(sniffAuditDB)
			if err != nil {
				exitWithError("failed to open audit db", err)
			}
			defer store.Close()
		}

		ok, bad := 0, 0
		for _, f := range findings {
			if f.Err != nil {
				bad++
				fmt.Printf("packet %d %s -> %s: malformed header: %v\n",
					f.PacketIndex, f.FlowSrc, f.FlowDst, f.Err)
				continue
			}
			ok++
			fmt.Printf("packet %d %s -> %s: v%d header, %d bytes, %s\n",
				f.PacketIndex, f.FlowSrc, f.FlowDst, f.Version, f.Consumed, f.Info)
			if store != nil {
				if err := store.RecordHeader(context.Background(), f.Info, f.Version, f.Timestamp); err != nil {
					exitWithError("failed to record header", err)
				}
			}
		}

		fmt.Printf("%d headers found (%d malformed) in %s\n", ok+bad, bad, args[0])
	},
}

func init() {
	sniffCmd.Flags().StringVar(&sniffAuditDB, "audit-db", "", "record found headers into this SQLite audit log")
	rootCmd.AddCommand(sniffCmd)
}
