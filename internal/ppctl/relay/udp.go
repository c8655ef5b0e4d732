package relay

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avionblock/ppcodec/internal/ppctl/audit"
	"github.com/avionblock/ppcodec/internal/ppctl/config"
	"github.com/avionblock/ppcodec/internal/ppctl/metrics"
	"github.com/avionblock/ppcodec/proxyproto"
)

const udpClientIdleTimeout = 2 * time.Minute

// udpClient is one tracked client flow with its dedicated backend socket.
type udpClient struct {
	addr       *net.UDPAddr
	conn       *net.UDPConn
	lastActive time.Time
}

// UDPRelay forwards datagrams between clients and the backend. Each new
// client flow gets a dedicated backend socket, with the PROXY protocol
// header prepended to the first datagram only, and is expired after an
// idle timeout.
type UDPRelay struct {
	cfg     config.RelayConfig
	log     *logrus.Entry
	metrics *metrics.Metrics
	store   *audit.Store // nil disables auditing

	mu      sync.Mutex
	clients map[string]*udpClient
}

func NewUDPRelay(cfg config.RelayConfig, log *logrus.Logger, m *metrics.Metrics, store *audit.Store) *UDPRelay {
	return &UDPRelay{
		cfg:     cfg,
		log:     log.WithFields(logrus.Fields{"component": "relay.udp", "listen": cfg.ListenAddr}),
		metrics: m,
		store:   store,
		clients: make(map[string]*udpClient),
	}
}

// Serve binds the listener and then blocks reading datagrams. Read errors
// are logged and skipped, so Serve returns only on a setup failure
// (header version, address resolution, or bind). The v1 text form has no
// datagram transport, so UDP relays require header version 2.
func (r *UDPRelay) Serve() error {
	if r.cfg.HeaderVersion != 2 {
		return fmt.Errorf("UDP relay requires header_version 2, got %d", r.cfg.HeaderVersion)
	}

	listenAddr, err := net.ResolveUDPAddr("udp", r.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("invalid listen address %s: %w", r.cfg.ListenAddr, err)
	}
	backendAddr, err := net.ResolveUDPAddr("udp", r.cfg.BackendAddr)
	if err != nil {
		return fmt.Errorf("invalid backend address %s: %w", r.cfg.BackendAddr, err)
	}

	mainConn, err := net.ListenUDP("udp", listenAddr)
	if err != nil {
		r.log.WithError(err).Error("failed to bind UDP listener")
		return err
	}
	defer mainConn.Close()

	r.log.Info("UDP relay listening")

	go r.expireIdleClients()

	buf := make([]byte, 64*1024)
	for {
		n, raddr, err := mainConn.ReadFromUDP(buf)
		if err != nil {
			r.log.WithError(err).Warn("UDP read error")
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		client, isNew, err := r.clientFor(mainConn, raddr, backendAddr)
		if err != nil {
			r.log.WithError(err).WithField("client", raddr.String()).Error("failed to set up backend flow")
			continue
		}

		if isNew {
			header, err := r.flowHeader(mainConn, raddr, &data)
			if err != nil {
				r.metrics.ObserveSerialize("2", "error")
				r.log.WithError(err).Error("failed to build PROXY header")
				r.dropClient(raddr.String())
				continue
			}
			r.metrics.ObserveSerialize("2", "ok")
			data = append(header, data...)
		}

		client.lastActive = time.Now()
		if _, err := client.conn.Write(data); err != nil {
			r.log.WithError(err).Warn("failed to forward datagram to backend")
		}
	}
}

// flowHeader builds the header for a new flow's first datagram. When the
// datagram itself starts with a header from an upstream proxy, that
// header is stripped from *data, audited, and its endpoints carried
// forward; otherwise the datagram's own endpoints are used.
func (r *UDPRelay) flowHeader(mainConn *net.UDPConn, raddr *net.UDPAddr, data *[]byte) ([]byte, error) {
	pi, n, err := proxyproto.ParseHeader(*data)
	if err != nil {
		r.metrics.ObserveParse("none", "error", 0)
		r.log.WithError(err).Warn("malformed inbound PROXY header, using datagram endpoints")
	} else if n > 0 {
		version := 2
		if (*data)[0] == 'P' {
			version = 1
		}
		r.metrics.ObserveParse(versionLabel(version), "ok", n)
		if r.store != nil {
			if err := r.store.RecordHeader(context.Background(), pi, version, time.Now()); err != nil {
				r.log.WithError(err).Warn("failed to audit inbound header")
			}
		}
		*data = (*data)[n:]

		if !pi.Local && pi.AddressFamily != proxyproto.AddressFamilyUnspec {
			fwd := &proxyproto.PpInfo{
				AddressFamily:     pi.AddressFamily,
				TransportProtocol: proxyproto.TransportProtocolDatagram,
				SrcAddr:           pi.SrcAddr,
				DstAddr:           pi.DstAddr,
				SrcPort:           pi.SrcPort,
				DstPort:           pi.DstPort,
			}
			return proxyproto.SerializeV2(fwd)
		}
	}

	return buildHeader(2, proxyproto.TransportProtocolDatagram, raddr, mainConn.LocalAddr())
}

// clientFor returns the tracked flow for raddr, creating its backend
// socket and reverse pump on first sight.
func (r *UDPRelay) clientFor(mainConn *net.UDPConn, raddr, backendAddr *net.UDPAddr) (*udpClient, bool, error) {
	key := raddr.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[key]; ok {
		return c, false, nil
	}

	backendConn, err := net.DialUDP("udp", nil, backendAddr)
	if err != nil {
		return nil, false, err
	}

	c := &udpClient{addr: raddr, conn: backendConn, lastActive: time.Now()}
	r.clients[key] = c
	r.metrics.RelayConnOpened(r.cfg.ListenAddr)

	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, err := backendConn.Read(buf)
			if err != nil {
				return
			}
			if _, err := mainConn.WriteToUDP(buf[:n], raddr); err != nil {
				r.log.WithError(err).Warn("failed to forward datagram to client")
			}
		}
	}()

	return c, true, nil
}

func (r *UDPRelay) dropClient(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[key]; ok {
		c.conn.Close()
		delete(r.clients, key)
		r.metrics.RelayConnClosed(r.cfg.ListenAddr)
	}
}

func (r *UDPRelay) expireIdleClients() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-udpClientIdleTimeout)
		r.mu.Lock()
		for key, c := range r.clients {
			if c.lastActive.Before(cutoff) {
				c.conn.Close()
				delete(r.clients, key)
				r.metrics.RelayConnClosed(r.cfg.ListenAddr)
			}
		}
		r.mu.Unlock()
	}
}
