package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsWithAndWithoutCause(t *testing.T) {
	e := New(CodeParseNoMatch, "parser", "Parse", "no pattern matched")
	assert.Contains(t, e.Error(), "PARSE_NO_MATCH")

	e.Wrap(assert.AnError)
	assert.Contains(t, e.Error(), assert.AnError.Error())
}

func TestIsTransientOnlyForStoreUnavailableOrDeadlock(t *testing.T) {
	assert.True(t, StoreTransientError("op", "msg").IsTransient())
	assert.False(t, StorePermanentError("op", "msg").IsTransient())
	assert.False(t, ConfigError("op", "msg").IsTransient())
}

func TestWithMetadata(t *testing.T) {
	e := ParseError("Parse", "bad value").WithMetadata("field", "Value").WithMetadata("value", "abc")
	assert.Equal(t, "Value", e.Metadata["field"])
	assert.Equal(t, "abc", e.Metadata["value"])
}
