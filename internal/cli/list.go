package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tutorprobe/internal/canon"
	"github.com/roach88/tutorprobe/internal/harness"
)

// ScenarioInfo describes a built-in scenario in list output.
type ScenarioInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Mints       []string `json:"mints,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in scenarios",
		Example: `  tutorprobe list
  tutorprobe list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listScenarios(rootOpts, cmd)
		},
	}
}

func listScenarios(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	infos := []ScenarioInfo{}
	for _, name := range harness.Builtins() {
		s, err := harness.Builtin(name)
		if err != nil {
			return out.Fail(ExitCommandError, CodeScenario, "failed to load built-in scenario", err)
		}
		info := ScenarioInfo{Name: s.Name, Description: s.Description}
		for _, step := range s.Steps {
			info.Steps = append(info.Steps, step.Name)
		}
		info.Mints = canon.SortedKeys(s.Mint)
		infos = append(infos, info)
	}

	return out.Success(infos, func(w io.Writer) error {
		for _, info := range infos {
			if _, err := fmt.Fprintf(w, "%-18s %s\n", info.Name, info.Description); err != nil {
				return err
			}
		}
		return nil
	})
}
