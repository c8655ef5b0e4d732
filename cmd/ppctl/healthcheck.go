package main

import (
	"encoding/hex"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/avionblock/ppcodec/proxyproto"
)

var healthcheckSend string

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Emit the minimal v2 LOCAL health-check header",
	Long: `Emit the 16-byte v2 LOCAL header a proxy sends on health-check
connections. With --send, the header is written to a TCP backend instead
of printed.

Examples:
  ppctl healthcheck
  ppctl healthcheck --send 127.0.0.1:9000`,
	Run: func(cmd *cobra.Command, args []string) {
		header, err := proxyproto.CreateHealthcheckHeader()
		if err != nil {
			exitWithError("failed to build health-check header", err)
		}

		if healthcheckSend == "" {
			fmt.Println(hex.EncodeToString(header))
			return
		}

		conn, err := net.Dial("tcp", healthcheckSend)
		if err != nil {
			exitWithError("failed to connect to backend", err)
		}
		defer conn.Close()
		if _, err := conn.Write(header); err != nil {
			exitWithError("failed to send health-check header", err)
		}
		log.WithField("backend", healthcheckSend).Info("health-check header sent")
	},
}

func init() {
	healthcheckCmd.Flags().StringVar(&healthcheckSend, "send", "", "write the header to this TCP address instead of printing it")
	rootCmd.AddCommand(healthcheckCmd)
}
