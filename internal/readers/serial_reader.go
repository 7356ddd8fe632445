package readers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// SerialPort is the minimal device handle SerialReader needs. The default
// implementation opens the device path directly via os.OpenFile, which
// works for already-configured ports (set up by the OS or by udev rules)
// but does not itself control baud rate or parity -- no dependency in the
// example corpus wraps termios, so that configuration is left to whatever
// set up the device node.
type SerialPort interface {
	io.ReadCloser
}

// SerialReaderConfig configures a SerialReader.
type SerialReaderConfig struct {
	Device string
	Logger *logrus.Logger

	// Open overrides how the device is opened, for testing or for a port
	// that needs baud/parity set through an external tool before Go reads
	// from it. Defaults to os.OpenFile(Device, O_RDONLY, 0).
	Open func(device string) (SerialPort, error)
}

// SerialReader reads newline-delimited records from a serial device
// (spec.md §1's "serial ports" source).
type SerialReader struct {
	cfg    SerialReaderConfig
	port   SerialPort
	scan   *bufio.Scanner
	logger *logrus.Logger
}

func defaultOpen(device string) (SerialPort, error) {
	f, err := os.OpenFile(device, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func NewSerialReader(cfg SerialReaderConfig) (*SerialReader, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("readers: serial device is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Open == nil {
		cfg.Open = defaultOpen
	}

	port, err := cfg.Open(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("readers: failed to open serial device %s: %w", cfg.Device, err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"component": "serial_reader",
		"device":    cfg.Device,
	}).Info("opened serial device")

	return &SerialReader{
		cfg:    cfg,
		port:   port,
		scan:   bufio.NewScanner(port),
		logger: cfg.Logger,
	}, nil
}

// Read blocks on the underlying scanner. Scans run synchronously, so a
// cancelled ctx only takes effect once the current Scan call returns --
// callers that need prompt cancellation should pair this with Close from
// another goroutine, which unblocks Scan by closing the device.
func (r *SerialReader) Read(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if !r.scan.Scan() {
		if err := r.scan.Err(); err != nil {
			return "", fmt.Errorf("readers: serial read error on %s: %w", r.cfg.Device, err)
		}
		return "", io.EOF
	}
	return r.scan.Text(), nil
}

func (r *SerialReader) Close() error {
	return r.port.Close()
}
