// Package relay forwards TCP and UDP traffic to a backend, prepending a
// PROXY protocol header on every new backend connection so the backend
// sees the original client endpoints. When an upstream proxy already
// prepended a header on the inbound side (proxy chaining), the relay
// parses it, audits it, and carries its endpoints forward instead of the
// immediate peer's.
package relay

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avionblock/ppcodec/internal/ppctl/audit"
	"github.com/avionblock/ppcodec/internal/ppctl/config"
	"github.com/avionblock/ppcodec/internal/ppctl/metrics"
	"github.com/avionblock/ppcodec/proxyproto"
)

// TCPRelay accepts connections on a listen address and pipes each one to
// the backend after writing the header.
type TCPRelay struct {
	cfg     config.RelayConfig
	log     *logrus.Entry
	metrics *metrics.Metrics
	store   *audit.Store // nil disables auditing
}

func NewTCPRelay(cfg config.RelayConfig, log *logrus.Logger, m *metrics.Metrics, store *audit.Store) *TCPRelay {
	return &TCPRelay{
		cfg:     cfg,
		log:     log.WithFields(logrus.Fields{"component": "relay.tcp", "listen": cfg.ListenAddr}),
		metrics: m,
		store:   store,
	}
}

// Serve binds the listener and then blocks accepting connections. Accept
// errors are logged and skipped, so Serve returns only if binding fails.
func (r *TCPRelay) Serve() error {
	listener, err := net.Listen("tcp", r.cfg.ListenAddr)
	if err != nil {
		r.log.WithError(err).Error("failed to bind TCP listener")
		return err
	}
	defer listener.Close()

	r.log.Info("TCP relay listening")

	for {
		clientConn, err := listener.Accept()
		if err != nil {
			r.log.WithError(err).Warn("failed to accept TCP connection")
			continue
		}
		go r.handleConn(clientConn)
	}
}

func (r *TCPRelay) handleConn(clientConn net.Conn) {
	defer clientConn.Close()

	r.metrics.RelayConnOpened(r.cfg.ListenAddr)
	defer r.metrics.RelayConnClosed(r.cfg.ListenAddr)

	// An upstream proxy may have prepended its own header; consume it so
	// the original client's endpoints survive the hop.
	br := bufio.NewReader(clientConn)
	inbound := r.readInboundHeader(br)

	backendConn, err := net.Dial("tcp", r.cfg.BackendAddr)
	if err != nil {
		r.log.WithError(err).WithField("backend", r.cfg.BackendAddr).Error("failed to connect to backend")
		return
	}
	defer backendConn.Close()

	header, err := r.outboundHeader(clientConn, inbound)
	if err != nil {
		r.metrics.ObserveSerialize(versionLabel(r.cfg.HeaderVersion), "error")
		r.log.WithError(err).Error("failed to build PROXY header")
		return
	}
	r.metrics.ObserveSerialize(versionLabel(r.cfg.HeaderVersion), "ok")

	if _, err := backendConn.Write(header); err != nil {
		r.log.WithError(err).Error("failed to send PROXY header")
		return
	}

	r.log.WithFields(logrus.Fields{
		"client":  clientConn.RemoteAddr().String(),
		"backend": r.cfg.BackendAddr,
	}).Debug("relaying TCP connection")

	go func() {
		io.Copy(backendConn, br)
		backendConn.Close()
		clientConn.Close()
	}()
	io.Copy(clientConn, backendConn)
}

// readInboundHeader consumes a PROXY protocol header from the client side
// if one is present. A malformed header is logged and treated as absent;
// its bytes are not discarded and stay buffered in br, so they reach the
// backend verbatim as leading payload.
func (r *TCPRelay) readInboundHeader(br *bufio.Reader) *proxyproto.PpInfo {
	prefix, _ := br.Peek(1)

	pi, n, err := proxyproto.ReadHeader(br)
	if err != nil {
		r.metrics.ObserveParse("none", "error", 0)
		r.log.WithError(err).Warn("malformed inbound PROXY header")
		return nil
	}
	if pi == nil {
		return nil
	}

	// The v1 text form starts with 'P', the v2 signature with 0x0D.
	version := 2
	if len(prefix) == 1 && prefix[0] == 'P' {
		version = 1
	}
	r.metrics.ObserveParse(versionLabel(version), "ok", n)

	if r.store != nil {
		if err := r.store.RecordHeader(context.Background(), pi, version, time.Now()); err != nil {
			r.log.WithError(err).Warn("failed to audit inbound header")
		}
	}
	return pi
}

// outboundHeader builds the header written to the backend: the inbound
// header's endpoints when one was present and conveys a proxied client,
// the immediate peer's otherwise.
func (r *TCPRelay) outboundHeader(clientConn net.Conn, inbound *proxyproto.PpInfo) ([]byte, error) {
	if inbound != nil && !inbound.Local && inbound.AddressFamily != proxyproto.AddressFamilyUnspec {
		pi := &proxyproto.PpInfo{
			AddressFamily:     inbound.AddressFamily,
			TransportProtocol: proxyproto.TransportProtocolStream,
			SrcAddr:           inbound.SrcAddr,
			DstAddr:           inbound.DstAddr,
			SrcPort:           inbound.SrcPort,
			DstPort:           inbound.DstPort,
		}
		return proxyproto.CreateHeader(r.cfg.HeaderVersion, pi)
	}
	return buildHeader(r.cfg.HeaderVersion, proxyproto.TransportProtocolStream,
		clientConn.RemoteAddr(), clientConn.LocalAddr())
}

func versionLabel(version int) string {
	if version == 1 {
		return "1"
	}
	return "2"
}
