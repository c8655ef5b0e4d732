package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avionblock/ppcodec/internal/ppctl/audit"
)

var (
	auditDB    string
	auditLimit int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the SQLite audit log of seen headers",
	Long: `Print the most recent headers recorded by serve, sniff --audit-db,
or parse --audit-db, newest first.

Examples:
  ppctl audit --db headers.db
  ppctl audit --db headers.db --limit 5`,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := audit.Open(auditDB)
		if err != nil {
			exitWithError("failed to open audit db", err)
		}
		defer store.Close()

		entries, err := store.Recent(context.Background(), auditLimit)
		if err != nil {
			exitWithError("failed to query audit log", err)
		}
		if len(entries) == 0 {
			fmt.Println("audit log is empty")
			return
		}

		for _, e := range entries {
			crc := ""
			if e.CRC32C {
				crc = " crc32c"
			}
			fmt.Printf("#%d %s v%d %s/%s %s:%d -> %s:%d tlvs=[%s]%s\n",
				e.ID, e.Timestamp.Format("2006-01-02 15:04:05"), e.Version,
				e.Family, e.Protocol,
				e.SrcAddr, e.SrcPort, e.DstAddr, e.DstPort,
				e.TlvTypes, crc)
		}
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditDB, "db", "ppctl-audit.db", "path of the SQLite audit log")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum rows to print")
	rootCmd.AddCommand(auditCmd)
}
