package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/advect/internal/engine"
)

// marshalStats converts engine statistics to JSON TEXT.
// HTML escaping is disabled so the stored text matches the CLI output.
func marshalStats(st engine.Stats) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(st); err != nil {
		return "", fmt.Errorf("marshal stats: %w", err)
	}
	// Encoder adds a trailing newline.
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalStats(data string) (engine.Stats, error) {
	var st engine.Stats
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return engine.Stats{}, fmt.Errorf("unmarshal stats: %w", err)
	}
	return st, nil
}
