// Package config describes one advection run and loads it from YAML,
// TOML or CUE files.
//
// Every format decodes into the same Config. YAML and TOML reject unknown
// keys; CUE files are unified with the embedded schema, which carries
// defaults and range constraints. Validate reports all problems at once.
package config
