package cli

import (
	"bytes"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrotlabs/feedgate/internal/coordinator"
	"github.com/carrotlabs/feedgate/internal/feed"
	"github.com/carrotlabs/feedgate/internal/journal"
	"github.com/carrotlabs/feedgate/internal/testutil"
)

type noopHandle struct{}

func (noopHandle) Play() error                    { return nil }
func (noopHandle) Pause() error                   { return nil }
func (noopHandle) SetPausedState() error          { return nil }
func (noopHandle) WarmUp() error                  { return nil }
func (noopHandle) Release() error                 { return nil }
func (noopHandle) Rect() (float64, float64, bool) { return 0, 0, false }

// recordTestSession writes a short session into a fresh journal database and
// returns the database path and session token.
func recordTestSession(t *testing.T) (string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "feedgate.db")

	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	defer j.Close()

	clock := testutil.NewFakeClock(time.Unix(1700000000, 0))
	c := coordinator.New(
		coordinator.WithClock(clock),
		coordinator.WithRecorder(j),
		coordinator.WithTokenGenerator(testutil.NewFixedTokenGenerator("session-cli")),
	)
	defer c.Close()

	for _, id := range []feed.ItemID{"p1", "p2"} {
		require.NoError(t, c.RegisterHandle(id, noopHandle{}))
	}
	require.NoError(t, c.SetActive("p1"))
	require.NoError(t, c.SetActive("p2"))
	require.NoError(t, c.ClearAll())

	return dbPath, c.Session()
}

func TestTraceCommand_ListSessions(t *testing.T) {
	dbPath, session := recordTestSession(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, session)
	assert.Contains(t, output, "5 transitions")
}

func TestTraceCommand_DumpSession(t *testing.T) {
	dbPath, session := recordTestSession(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", session})

	require.NoError(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "#3 activate p1 idle->active [play(p1)]")
	assert.Contains(t, output, "#4 activate p2 idle->active [pause(p1) set_paused(p1) play(p2)]")
}

func TestTraceCommand_UnknownSession(t *testing.T) {
	dbPath, _ := recordTestSession(t)

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", "missing"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "not found")
}

func TestTraceCommand_EmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "no sessions recorded")
}

func TestReplayCommand_CleanSession(t *testing.T) {
	dbPath, session := recordTestSession(t)

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", session})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "5 transitions replayed, no divergence")
}

func TestReplayCommand_TamperedSession(t *testing.T) {
	dbPath, session := recordTestSession(t)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE transitions SET effects = ? WHERE session_id = ? AND seq = 3`,
		`["release(p1)"]`, session)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", session})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "divergence")
}

func TestReplayCommand_UnknownSession(t *testing.T) {
	dbPath, _ := recordTestSession(t)

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--session", "missing"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
