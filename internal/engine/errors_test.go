package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/advect/internal/ir"
)

func TestError_Format(t *testing.T) {
	key := ir.DomainKey{Domain: 3, TimeStep: 1}
	err := &Error{
		Code:    CodeProtocol,
		Message: "payload without a pending request",
		Rank:    2,
		Key:     &key,
		Details: map[string]string{"z": "1", "a": "2"},
	}
	assert.Equal(t, "PROTOCOL: payload without a pending request (rank=2, key=3@1, a=2, z=1)", err.Error())

	cfg := NewConfigurationError("missing %s", "solver")
	assert.Equal(t, "CONFIGURATION: missing solver", cfg.Error())
}

func TestError_Predicates(t *testing.T) {
	wrapped := fmt.Errorf("step: %w", invariantError(0, "broken"))
	assert.True(t, IsInvariantViolation(wrapped))
	assert.False(t, IsConfigurationError(wrapped))

	assert.True(t, IsConfigurationError(NewConfigurationError("x")))
	assert.True(t, IsProtocolError(protocolError(1, nil, "x")))
	assert.True(t, IsNumericalError(&Error{Code: CodeNumerical}))
	assert.False(t, IsUnsupported(errors.New("plain")))
}

func TestError_UnsupportedWrapsSentinel(t *testing.T) {
	err := unsupportedError(1, PatternOnDemand, "resume")
	assert.True(t, IsUnsupported(err))
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Contains(t, err.Error(), "pattern=on-demand")
}
