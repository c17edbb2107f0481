package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/carrotlabs/feedgate/internal/journal"
)

// ReplayResult is the JSON payload for the replay command.
type ReplayResult struct {
	Session string `json:"session"`
	Steps   int    `json:"steps"`
	Active  string `json:"active"`
	Warm    string `json:"warm"`
}

// NewReplayCommand creates the replay command: re-derive a session through
// the transition function and verify the journal is self-consistent.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath  string
		session string
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify a journaled session replays without divergence",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}

			j, err := journal.Open(dbPath)
			if err != nil {
				_ = out.Error(err.Error())
				return WrapExitError(ExitCommandError, "open journal", err)
			}
			defer j.Close()

			result, err := j.Replay(session)
			if err != nil {
				_ = out.Error(err.Error())
				var div *journal.DivergenceError
				if errors.As(err, &div) {
					return WrapExitError(ExitFailure, "replay divergence", err)
				}
				return WrapExitError(ExitCommandError, "replay", err)
			}

			payload := ReplayResult{
				Session: result.Session,
				Steps:   result.Steps,
				Active:  string(result.Final.Active),
				Warm:    string(result.Final.Warm),
			}
			return out.Successf(payload,
				"session %s: %d transitions replayed, no divergence",
				payload.Session, payload.Steps)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "feedgate.db", "journal database path")
	cmd.Flags().StringVar(&session, "session", "", "session to replay")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
