package readers

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUDPReaderReceivesDatagram(t *testing.T) {
	r, err := NewUDPReader(UDPReaderConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer r.Close()

	addr := r.conn.LocalAddr().(*net.UDPAddr)

	sender, err := net.DialUDP("udp", nil, addr)
	require.NoError(t, err)
	defer sender.Close()
	_, err = sender.Write([]byte("$GPRMC,sample"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	line, err := r.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "$GPRMC,sample", line)
}

func TestUDPReaderReadRespectsContextCancellation(t *testing.T) {
	r, err := NewUDPReader(UDPReaderConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = r.Read(ctx)
	require.Error(t, err)
}
