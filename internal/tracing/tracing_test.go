package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabledGivesWorkingNoopTracer(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false}, nil)
	require.NoError(t, err)

	ctx, span := p.StartSpan(context.Background(), "op")
	assert.NotNil(t, ctx)
	span.SetAttribute("k", "v")
	span.SetError(errors.New("boom"))
	span.End()
}

func TestNilSpanMethodsAreNoops(t *testing.T) {
	var s *Span
	assert.NotPanics(t, func() {
		s.SetAttribute("k", "v")
		s.SetError(errors.New("boom"))
		s.End()
	})
}

func TestProviderShutdownNoopWhenDisabled(t *testing.T) {
	p, err := NewProvider(Config{Enabled: false}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}
