package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/avionblock/ppcodec/internal/ppctl/audit"
	"github.com/avionblock/ppcodec/internal/ppctl/config"
	"github.com/avionblock/ppcodec/internal/ppctl/metrics"
	"github.com/avionblock/ppcodec/internal/ppctl/relay"
	"github.com/avionblock/ppcodec/proxyproto"
)

var (
	serveConfigPath string
	serveInitConfig bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run relays, the metrics endpoint, and the health-check emitter",
	Long: `Run the operational harness described by the configuration file:
TCP/UDP relays that prepend PROXY protocol headers, a Prometheus /metrics
endpoint, and a cron-scheduled health-check emitter.

Examples:
  ppctl serve -c ppctl.yaml
  ppctl serve --init-config > ppctl.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		if serveInitConfig {
			data, err := config.Example()
			if err != nil {
				exitWithError("failed to render example config", err)
			}
			os.Stdout.Write(data)
			return
		}

		cfg, err := config.Load(serveConfigPath)
		if err != nil {
			exitWithError("failed to load config", err)
		}

		m := metrics.New()

		var store *audit.Store
		if cfg.AuditDB != "" {
			store, err = audit.Open(cfg.AuditDB)
			if err != nil {
				exitWithError("failed to open audit db", err)
			}
			defer store.Close()
		}

		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			go func() {
				log.WithField("addr", cfg.MetricsAddr).Info("metrics endpoint listening")
				if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
					log.WithError(err).Error("metrics endpoint failed")
				}
			}()
		}

		for _, rc := range cfg.Relays {
			rc := rc
			if rc.ProtoTCP {
				go func() {
					if err := relay.NewTCPRelay(rc, log, m, store).Serve(); err != nil {
						log.WithError(err).WithField("listen", rc.ListenAddr).Error("TCP relay stopped")
					}
				}()
			} else {
				go func() {
					if err := relay.NewUDPRelay(rc, log, m, store).Serve(); err != nil {
						log.WithError(err).WithField("listen", rc.ListenAddr).Error("UDP relay stopped")
					}
				}()
			}
		}

		var scheduler *cron.Cron
		if cfg.HealthcheckSchedule != "" {
			scheduler = cron.New()
			_, err := scheduler.AddFunc(cfg.HealthcheckSchedule, func() {
				sendHealthcheck(cfg.HealthcheckBackend, m)
			})
			if err != nil {
				exitWithError("invalid healthcheck_schedule", err)
			}
			scheduler.Start()
			log.WithFields(logrus.Fields{
				"schedule": cfg.HealthcheckSchedule,
				"backend":  cfg.HealthcheckBackend,
			}).Info("health-check emitter scheduled")
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		log.Info("shutting down")
	},
}

// sendHealthcheck dials the backend and writes the 16-byte v2 LOCAL
// header, the probe a proxy in front of this backend would send.
func sendHealthcheck(backend string, m *metrics.Metrics) {
	header, err := proxyproto.CreateHealthcheckHeader()
	if err != nil {
		m.ObserveSerialize("2", "error")
		log.WithError(err).Error("failed to build health-check header")
		return
	}
	m.ObserveSerialize("2", "ok")

	conn, err := net.Dial("tcp", backend)
	if err != nil {
		log.WithError(err).WithField("backend", backend).Warn("health-check connect failed")
		return
	}
	defer conn.Close()

	if _, err := conn.Write(header); err != nil {
		log.WithError(err).WithField("backend", backend).Warn("health-check write failed")
		return
	}
	log.WithField("backend", backend).Debug("health-check header sent")
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "ppctl.yaml", "path to the configuration file")
	serveCmd.Flags().BoolVar(&serveInitConfig, "init-config", false, "print an example configuration and exit")
	rootCmd.AddCommand(serveCmd)
}
