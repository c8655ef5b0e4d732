// Package main implements the ppctl CLI using the cobra framework.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/avionblock/ppcodec/internal/ppctl/logging"
)

var (
	logLevel  string
	logFormat string

	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ppctl",
	Short: "ppctl - PROXY protocol header toolbox",
	Long: `ppctl parses, builds, and hunts for PROXY protocol headers (v1 text
and v2 binary), and can run a small relay that prepends them to forwarded
connections.

Subcommands:
  parse        decode a header from a file or hex string
  build        construct a header from endpoint and TLV flags
  healthcheck  emit the minimal v2 LOCAL health-check header
  sniff        scan a pcap capture for PROXY headers
  audit        query the SQLite audit log
  serve        run relays, metrics, and the scheduled health-check emitter`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		log, err = logging.New(logLevel, logFormat)
		return err
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text or json)")
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
