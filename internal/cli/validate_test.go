package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/advect/internal/config"
)

func TestValidate_Text(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/line.yaml")
	require.NoError(t, err)

	cfg, err := config.Load("testdata/line.yaml")
	require.NoError(t, err)
	fp, err := cfg.Fingerprint()
	require.NoError(t, err)

	assert.Contains(t, out, "✓ configuration valid")
	assert.Contains(t, out, "name:        line")
	assert.Contains(t, out, "fingerprint: "+fp)
	assert.Contains(t, out, "ranks:       2 (on-demand, block)")
	assert.Contains(t, out, "domains:     4 x 1 time steps")
	assert.Contains(t, out, "seeds:       8")
}

func TestValidate_JSON(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/line.yaml", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Ranks)
	assert.Equal(t, 4, resp.Data.Domains)
	assert.Equal(t, 8, resp.Data.Seeds)
	assert.Len(t, resp.Data.Fingerprint, 64)
}

func TestValidate_InvalidListsEveryProblem(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/invalid.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	assert.Contains(t, out, "✗ testdata/invalid.yaml is invalid")
	assert.Contains(t, out, "ranks: must be at least 1")
	assert.Contains(t, out, "solver.step_size: must be positive")
	assert.Contains(t, out, "one of max_steps or max_time is required")
}

func TestValidate_InvalidJSON(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/invalid.yaml", "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfigInvalid, resp.Error.Code)

	details, ok := resp.Error.Details.([]any)
	require.True(t, ok, "details should be a list, got %T", resp.Error.Details)
	assert.GreaterOrEqual(t, len(details), 3)
}

func TestValidate_MissingFile(t *testing.T) {
	out, _, err := execute(t, "validate", "testdata/absent.yaml", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfigNotFound, resp.Error.Code)
}

func TestValidate_MissingArgs(t *testing.T) {
	_, _, err := execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
