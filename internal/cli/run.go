package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carrotlabs/feedgate/internal/harness"
)

// RunResult is the JSON payload for the run command.
type RunResult struct {
	Scenario    string   `json:"scenario"`
	Session     string   `json:"session"`
	Transitions int      `json:"transitions"`
	Trace       []string `json:"trace"`
	Failures    []string `json:"failures,omitempty"`
}

// NewRunCommand creates the run command: execute one scenario file and print
// its trace.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a playback scenario and print its transition trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}

			scenario, err := harness.LoadScenario(args[0])
			if err != nil {
				_ = out.Error(err.Error())
				return WrapExitError(ExitCommandError, "load scenario", err)
			}

			result, err := harness.Run(scenario)
			if err != nil {
				_ = out.Error(err.Error())
				return WrapExitError(ExitFailure, "scenario execution", err)
			}

			runResult := RunResult{
				Scenario:    scenario.Name,
				Session:     result.Session,
				Transitions: len(result.Records),
			}
			for _, rec := range result.Records {
				runResult.Trace = append(runResult.Trace, formatRecord(rec))
			}
			for _, failure := range harness.CheckAssertions(result, scenario.Assertions) {
				runResult.Failures = append(runResult.Failures, failure.Error())
			}

			if len(runResult.Failures) > 0 {
				_ = out.Error(fmt.Sprintf("scenario %s: %d assertion(s) failed:\n  %s",
					scenario.Name, len(runResult.Failures), strings.Join(runResult.Failures, "\n  ")))
				return WrapExitError(ExitFailure, "assertions failed", nil)
			}

			if rootOpts.Format == "json" {
				return out.Success(runResult)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scenario %s (session %s): %d transitions\n",
				runResult.Scenario, runResult.Session, runResult.Transitions)
			for _, line := range runResult.Trace {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", line)
			}
			return nil
		},
	}
	return cmd
}
