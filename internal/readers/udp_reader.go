package readers

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// noDeadline clears any read deadline; epoch is in the past, so setting it
// immediately unblocks a pending ReadFromUDP call.
var noDeadline time.Time
var epoch = time.Unix(0, 0)

// UDPReaderConfig configures a UDPReader.
type UDPReaderConfig struct {
	// Addr is a "host:port" listen address. An empty host listens on all
	// interfaces.
	Addr string

	// MaxPacketSize bounds a single datagram; defaults to 65507 bytes (the
	// UDP maximum payload over IPv4).
	MaxPacketSize int

	Logger *logrus.Logger
}

// UDPReader listens on a UDP socket and returns one line per received
// datagram (spec.md §1's "UDP" source). Unlike LogfileReader/SerialReader,
// each Read corresponds to exactly one packet, not one newline-delimited
// line -- a sensor is expected to send one record per datagram.
type UDPReader struct {
	cfg  UDPReaderConfig
	conn *net.UDPConn
	buf  []byte
}

func NewUDPReader(cfg UDPReaderConfig) (*UDPReader, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("readers: udp listen address is required")
	}
	if cfg.MaxPacketSize <= 0 {
		cfg.MaxPacketSize = 65507
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("readers: invalid udp address %s: %w", cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("readers: failed to listen on %s: %w", cfg.Addr, err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"component": "udp_reader",
		"addr":      cfg.Addr,
	}).Info("listening for udp packets")

	return &UDPReader{cfg: cfg, conn: conn, buf: make([]byte, cfg.MaxPacketSize)}, nil
}

// Read blocks until a packet arrives or ctx is cancelled. Cancellation is
// enforced by pushing a read deadline derived from ctx's deadline (if any)
// and by setting a read deadline in the past when ctx.Done fires, since
// net.UDPConn has no native context support.
func (r *UDPReader) Read(ctx context.Context) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = r.conn.SetReadDeadline(deadline)
	} else {
		_ = r.conn.SetReadDeadline(noDeadline)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = r.conn.SetReadDeadline(epoch)
		case <-done:
		}
	}()

	n, _, err := r.conn.ReadFromUDP(r.buf)
	close(done)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("readers: udp read error on %s: %w", r.cfg.Addr, err)
	}
	return string(r.buf[:n]), nil
}

func (r *UDPReader) Close() error {
	return r.conn.Close()
}
