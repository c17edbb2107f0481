package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carrotlabs/feedgate/internal/coordinator"
	"github.com/carrotlabs/feedgate/internal/journal"
)

// formatRecord renders one transition as a single trace line.
func formatRecord(rec coordinator.TransitionRecord) string {
	subject := string(rec.Item)
	if subject == "" {
		subject = "-"
	}
	states := ""
	if rec.From != "" || rec.To != "" {
		states = fmt.Sprintf(" %s->%s", rec.From, rec.To)
	}
	effects := ""
	if len(rec.Effects) > 0 {
		effects = " [" + strings.Join(rec.Effects, " ") + "]"
	}
	return fmt.Sprintf("#%d %s %s%s%s", rec.Seq, rec.Event, subject, states, effects)
}

// SessionSummary is the JSON payload for the session listing.
type SessionSummary struct {
	ID          string `json:"id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Transitions int    `json:"transitions"`
}

// TraceResult is the JSON payload for a session dump.
type TraceResult struct {
	Session string   `json:"session"`
	Trace   []string `json:"trace"`
}

// NewTraceCommand creates the trace command: list journal sessions, or dump
// one session's transitions.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath  string
		session string
	)

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journal sessions or dump one session's transitions",
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

			if session == "" {
				return listSessions(cmd, out, j)
			}
			return dumpSession(cmd, out, j, session)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "feedgate.db", "journal database path")
	cmd.Flags().StringVar(&session, "session", "", "session to dump (omit to list sessions)")
	return cmd
}

func listSessions(cmd *cobra.Command, out *OutputFormatter, j *journal.Journal) error {
	sessions, err := j.Sessions()
	if err != nil {
		_ = out.Error(err.Error())
		return WrapExitError(ExitCommandError, "list sessions", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summaries = append(summaries, SessionSummary{
			ID:          s.ID,
			Start:       s.Start.UTC().Format("2006-01-02T15:04:05.000Z"),
			End:         s.End.UTC().Format("2006-01-02T15:04:05.000Z"),
			Transitions: s.Transitions,
		})
	}

	if out.Format == "json" {
		return out.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no sessions recorded")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s .. %s  %d transitions\n", s.ID, s.Start, s.End, s.Transitions)
	}
	return nil
}

func dumpSession(cmd *cobra.Command, out *OutputFormatter, j *journal.Journal, session string) error {
	records, err := j.Transitions(session)
	if err != nil {
		_ = out.Error(err.Error())
		return WrapExitError(ExitCommandError, "read session", err)
	}
	if len(records) == 0 {
		_ = out.Error(fmt.Sprintf("session %s not found", session))
		return WrapExitError(ExitCommandError, "session not found", nil)
	}

	result := TraceResult{Session: session}
	for _, rec := range records {
		result.Trace = append(result.Trace, formatRecord(rec))
	}

	if out.Format == "json" {
		return out.Success(result)
	}
	for _, line := range result.Trace {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
