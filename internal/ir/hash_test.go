package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := map[string]any{"ranks": 2, "pattern": "on-demand"}
	b := map[string]any{"pattern": "on-demand", "ranks": 2}

	fa, err := Fingerprint(DomainConfig, a)
	require.NoError(t, err)
	fb, err := Fingerprint(DomainConfig, b)
	require.NoError(t, err)

	assert.Equal(t, fa, fb, "key order must not affect the fingerprint")
	assert.Len(t, fa, 64, "hex-encoded SHA-256")
}

func TestFingerprint_DomainSeparation(t *testing.T) {
	v := map[string]any{"ranks": 2}
	assert.NotEqual(t,
		MustFingerprint(DomainConfig, v),
		MustFingerprint(DomainTrace, v),
	)
}

func TestFingerprint_DifferentInputs(t *testing.T) {
	assert.NotEqual(t,
		MustFingerprint(DomainConfig, map[string]any{"ranks": 2}),
		MustFingerprint(DomainConfig, map[string]any{"ranks": 3}),
	)
}

func TestFingerprint_Error(t *testing.T) {
	_, err := Fingerprint(DomainConfig, map[string]any{"step": 0.1})
	assert.Error(t, err)
	assert.Panics(t, func() { MustFingerprint(DomainConfig, nil) })
}
