package writers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNetworkWriterRejectsMissingBrokers(t *testing.T) {
	_, err := NewNetworkWriter(NetworkWriterConfig{Topic: "acquire"})
	assert.Error(t, err)
}

func TestNewNetworkWriterRejectsMissingTopic(t *testing.T) {
	_, err := NewNetworkWriter(NetworkWriterConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}
