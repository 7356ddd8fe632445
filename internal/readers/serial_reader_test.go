package readers

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSerialPort struct {
	io.Reader
}

func (f fakeSerialPort) Close() error { return nil }

func TestSerialReaderReadsLinesFromOpenPort(t *testing.T) {
	r, err := NewSerialReader(SerialReaderConfig{
		Device: "/dev/ttyFAKE0",
		Open: func(device string) (SerialPort, error) {
			return fakeSerialPort{Reader: strings.NewReader("$GPGGA,1\n$GPGGA,2\n")}, nil
		},
	})
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	line, err := r.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "$GPGGA,1", line)

	line, err = r.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "$GPGGA,2", line)

	_, err = r.Read(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestSerialReaderOpenFailurePropagates(t *testing.T) {
	_, err := NewSerialReader(SerialReaderConfig{
		Device: "/dev/ttyFAKE0",
		Open: func(device string) (SerialPort, error) {
			return nil, io.ErrClosedPipe
		},
	})
	require.Error(t, err)
}
