package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/roach88/advect/internal/config"
	"github.com/roach88/advect/internal/field"
)

// ValidationResult describes a valid run configuration.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Name        string `json:"name,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Ranks       int    `json:"ranks"`
	Pattern     string `json:"pattern"`
	Partition   string `json:"partition"`
	Domains     int    `json:"domains"`
	TimeSteps   int    `json:"time_steps"`
	Seeds       int    `json:"seeds"`
}

// Text renders the result for humans.
func (r ValidationResult) Text(w io.Writer) {
	fmt.Fprintln(w, "✓ configuration valid")
	if r.Name != "" {
		fmt.Fprintf(w, "  name:        %s\n", r.Name)
	}
	fmt.Fprintf(w, "  fingerprint: %s\n", r.Fingerprint)
	fmt.Fprintf(w, "  ranks:       %d (%s, %s)\n", r.Ranks, r.Pattern, r.Partition)
	fmt.Fprintf(w, "  domains:     %d x %d time steps\n", r.Domains, r.TimeSteps)
	fmt.Fprintf(w, "  seeds:       %d\n", r.Seeds)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a run configuration",
		Long: `Load and validate a run configuration without advecting anything.

Accepts YAML, TOML, or CUE. Every problem is reported, not just the first,
and a valid configuration prints its fingerprint: the hash every worker of
a multi-process run must agree on.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(formatter, path)
	if err != nil {
		return err
	}
	formatter.VerboseLog("Loaded %s", path)

	fp, err := cfg.Fingerprint()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "fingerprint failed", err)
	}
	seeds, err := field.GenerateSeeds(cfg.SeedSpec())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfigInvalid, "invalid seeds", err)
	}

	return formatter.Success(ValidationResult{
		Valid:       true,
		Name:        cfg.Name,
		Fingerprint: fp,
		Ranks:       cfg.Ranks,
		Pattern:     cfg.Pattern,
		Partition:   cfg.Partition,
		Domains:     cfg.Domains(),
		TimeSteps:   cfg.Mesh.TimeSteps,
		Seeds:       len(seeds),
	})
}

// loadConfig loads path and reports failures through formatter. Validation
// failures list every problem as details.
func loadConfig(formatter *OutputFormatter, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfigNotFound, fmt.Sprintf("config not found: %s", path), nil)
	}

	problems := make([]string, 0)
	for _, e := range configProblems(err) {
		problems = append(problems, e.Error())
	}
	if formatter.Format != "json" {
		fmt.Fprintf(formatter.Writer, "✗ %s is invalid\n", path)
		for _, p := range problems {
			fmt.Fprintf(formatter.Writer, "  %s\n", p)
		}
		return nil, exitError(ExitCommandError, ErrCodeConfigInvalid, "invalid config", err)
	}
	if outErr := formatter.Error(ErrCodeConfigInvalid, "invalid config", problems); outErr != nil {
		return nil, outErr
	}
	return nil, exitError(ExitCommandError, ErrCodeConfigInvalid, "invalid config", err)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// configProblems unpacks the validation errors wrapped inside err.
func configProblems(err error) []error {
	var group interface{ Unwrap() []error }
	if errors.As(err, &group) {
		return multierr.Errors(group.(error))
	}
	return []error{err}
}
