package flagtypes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ensure they conform to the interfaces
var dryRun = DryRunNone
var _ pflag.Value = &dryRun

// DryRun is an enum flag for setting dry-run.
type DryRun string

const (
	// DryRunNone disables dry-run. Artifacts are downloaded as usual.
	DryRunNone DryRun = "none"
	// DryRunList resolves builds and lists matching artifacts, without
	// downloading them.
	DryRunList DryRun = "list"
)

// String implements the pflag.Value and fmt.Stringer interfaces.
func (d *DryRun) String() string {
	return fmt.Sprintf(`"%s"`, string(*d))
}

// Set implements the pflag.Value interface.
func (d *DryRun) Set(value string) error {
	dryRun, err := parseDryRun(value)
	if err != nil {
		return err
	}
	*d = dryRun
	return nil
}

func parseDryRun(value string) (DryRun, error) {
	switch strings.ToLower(value) {
	case "none", "false":
		return DryRunNone, nil
	case "list", "true":
		return DryRunList, nil
	default:
		return "", errors.New(`must be one of "none" or "list"`)
	}
}

// Type implements the pflag.Value interface.
// The value is only used in help text.
func (d *DryRun) Type() string {
	return "dry-run"
}

// CompleteDryRun returns completions for the DryRun type.
func CompleteDryRun(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return []string{
		string(DryRunNone) + "\tDisables dry-run. Artifacts are downloaded as usual",
		string(DryRunList) + "\tOnly lists the artifacts that would be downloaded",
	}, cobra.ShellCompDirectiveNoFileComp
}
