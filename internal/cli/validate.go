package cli

import (
	"github.com/spf13/cobra"

	"github.com/carrotlabs/feedgate/internal/compiler"
)

// ValidateResult is the JSON payload for the validate command.
type ValidateResult struct {
	Feed  string `json:"feed"`
	Items int    `json:"items"`
}

// NewValidateCommand creates the validate command: compile a CUE feed file
// and report what it declares.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <feed.cue>",
		Short: "Compile and validate a feed definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}

			def, err := compiler.LoadFeedFile(args[0])
			if err != nil {
				_ = out.Error(err.Error())
				return WrapExitError(ExitCommandError, "validation failed", err)
			}

			out.VerboseLog("tuning: grace=%v debounce=%v window=%d",
				def.Tuning.GracePeriod, def.Tuning.SweepDebounce, def.Tuning.PreloadWindow)

			result := ValidateResult{Feed: def.Name, Items: len(def.Items)}
			return out.Successf(result, "feed %q: %d items, valid", result.Feed, result.Items)
		},
	}
	return cmd
}
