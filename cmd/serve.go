// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/qtransport/quicd/conn"
	"github.com/qtransport/quicd/internal/sigs"
	"github.com/qtransport/quicd/logger"
	"github.com/qtransport/quicd/packet"
	"github.com/qtransport/quicd/qerr"
)

var (
	serveListen     string
	serveMetrics    string
	serveIdleReap   time.Duration
	serveTickPeriod time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the QUIC/HTTP3 listener",
	Long: `serve binds a UDP socket, demultiplexes inbound datagrams to
connections by destination connection ID (RFC 9000 §5.2), and drives
each connection's timer-fired retransmission and idle-timeout checks.`,
	RunE: runServe,
	Example: "# quicd serve --listen :4433 --metrics :9090",
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", ":4433", "UDP address to receive QUIC datagrams on")
	serveCmd.Flags().StringVar(&serveMetrics, "metrics", ":9090", "HTTP address to serve /metrics on (empty disables it)")
	serveCmd.Flags().DurationVar(&serveIdleReap, "idle-timeout", 30*time.Second, "connections untouched this long are torn down")
	serveCmd.Flags().DurationVar(&serveTickPeriod, "tick", 200*time.Millisecond, "timer-check period for active connections")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", serveListen)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}
	sock, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}
	defer sock.Close()
	logger.Infof("serve: listening on %s", sock.LocalAddr())

	if serveMetrics != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(serveMetrics, mux); err != nil {
				logger.Errorf("serve: metrics listener stopped: %v", err)
			}
		}()
		logger.Infof("serve: metrics on http://%s/metrics", serveMetrics)
	}

	registry := conn.NewRegistry()
	reapTicker := time.NewTicker(serveIdleReap / 2)
	defer reapTicker.Stop()
	tickTicker := time.NewTicker(serveTickPeriod)
	defer tickTicker.Stop()

	datagrams := make(chan []byte, 256)
	go readLoop(sock, datagrams)

	var reloadTotal int
	for {
		select {
		case b := <-datagrams:
			dispatchDatagram(registry, b)

		case now := <-tickTicker.C:
			for _, c := range registry.IdleConnections(0) {
				c.Tick(now)
			}

		case <-reapTicker.C:
			for _, c := range registry.IdleConnections(int64(serveIdleReap.Seconds())) {
				c.Close(qerr.NoError, "idle timeout", time.Now())
			}

		case <-sigs.Reload():
			reloadTotal++
			logger.Infof("serve: reload signal received (count=%d), nothing to reload yet", reloadTotal)

		case <-sigs.Terminate():
			logger.Infof("serve: terminating")
			return nil
		}
	}
}

// readLoop feeds raw datagrams into the main select loop so socket I/O
// never blocks timer dispatch, the same separation-of-concerns the
// teacher's sniffer capture goroutine keeps from its processing pipeline.
func readLoop(sock *net.UDPConn, out chan<- []byte) {
	buf := make([]byte, 65535)
	for {
		n, _, err := sock.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			logger.Errorf("serve: read error: %v", err)
			close(out)
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		out <- cp
	}
}

// dispatchDatagram peeks the destination connection ID without touching
// header or packet protection (packet.ParseLongHeaderPrefix /
// ParseShortHeaderPrefix), routes to an existing Conn by DCID, or spins
// up a new server-side Conn on an unrecognized long-header datagram.
func dispatchDatagram(registry *conn.Registry, b []byte) {
	if len(b) == 0 {
		return
	}
	var dcid []byte
	if packet.IsLongHeader(b[0]) {
		h, err := packet.ParseLongHeaderPrefix(b)
		if err != nil {
			logger.Debugf("serve: dropped unparseable long header: %v", err)
			return
		}
		dcid = h.DCID
	} else {
		h, err := packet.ParseShortHeaderPrefix(b, conn.DefaultCIDLen)
		if err != nil {
			logger.Debugf("serve: dropped unparseable short header: %v", err)
			return
		}
		dcid = h.DCID
	}

	c, ok := registry.Lookup(dcid)
	if !ok {
		if !packet.IsLongHeader(b[0]) {
			logger.Debugf("serve: short header for unknown connection id, dropped")
			return
		}
		c = conn.New(true, registry, conn.TransportParameters{})
		registry.Register(dcid, c)
	}
	c.OnDatagram(b, time.Now())
}
