package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carrotlabs/feedgate/internal/coordinator"
	"github.com/carrotlabs/feedgate/internal/feed"
	"github.com/carrotlabs/feedgate/internal/testutil"
)

type noopHandle struct{}

func (noopHandle) Play() error                    { return nil }
func (noopHandle) Pause() error                   { return nil }
func (noopHandle) SetPausedState() error          { return nil }
func (noopHandle) WarmUp() error                  { return nil }
func (noopHandle) Release() error                 { return nil }
func (noopHandle) Rect() (float64, float64, bool) { return 0, 0, false }

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "feedgate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

// recordSession drives a coordinator wired to the journal through a short
// scenario and returns the session token.
func recordSession(t *testing.T, j *Journal, token string) string {
	t.Helper()
	clock := testutil.NewFakeClock(time.Unix(1700000000, 0))
	c := coordinator.New(
		coordinator.WithClock(clock),
		coordinator.WithRecorder(j),
		coordinator.WithTokenGenerator(testutil.NewFixedTokenGenerator(token)),
	)
	t.Cleanup(func() { _ = c.Close() })

	for _, id := range []feed.ItemID{"p1", "p2", "p3"} {
		require.NoError(t, c.RegisterHandle(id, noopHandle{}))
	}
	require.NoError(t, c.SetActive("p1"))
	require.NoError(t, c.SetWarm("p2"))
	require.NoError(t, c.SetActive("p2"))
	require.NoError(t, c.SetIdle("p1"))
	clock.Advance(6 * time.Second) // grace expiry lands in the journal too
	require.NoError(t, c.ClearAll())

	return c.Session()
}

func TestJournal_Record_RoundTripsRows(t *testing.T) {
	j := openTestJournal(t)
	session := recordSession(t, j, "session-rt")

	records, err := j.Transitions(session)
	require.NoError(t, err)
	require.NotEmpty(t, records)

	// Dense seq from 1, all stamped with the session token.
	for i, rec := range records {
		assert.Equal(t, uint64(i+1), rec.Seq)
		assert.Equal(t, session, rec.Session)
	}

	// The activate of p2 demotes p1 and plays p2.
	var activateP2 *coordinator.TransitionRecord
	for i := range records {
		if records[i].Event == "activate" && records[i].Item == "p2" {
			activateP2 = &records[i]
		}
	}
	require.NotNil(t, activateP2)
	assert.Equal(t, "warm", activateP2.From)
	assert.Equal(t, "active", activateP2.To)
	assert.Equal(t, []string{"pause(p1)", "set_paused(p1)", "play(p2)"}, activateP2.Effects)
}

func TestJournal_Sessions_SummarizesRecordedSessions(t *testing.T) {
	j := openTestJournal(t)
	s1 := recordSession(t, j, "session-a")
	s2 := recordSession(t, j, "session-b")

	sessions, err := j.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	byID := map[string]SessionInfo{}
	for _, s := range sessions {
		byID[s.ID] = s
	}
	require.Contains(t, byID, s1)
	require.Contains(t, byID, s2)
	assert.Greater(t, byID[s1].Transitions, 0)
	assert.False(t, byID[s1].Start.After(byID[s1].End))
}

func TestJournal_Replay_VerifiesCleanSession(t *testing.T) {
	j := openTestJournal(t)
	session := recordSession(t, j, "session-clean")

	result, err := j.Replay(session)
	require.NoError(t, err)

	assert.Equal(t, session, result.Session)
	assert.Greater(t, result.Steps, 5)

	// After ClearAll everything is idle and the slots are empty.
	assert.Equal(t, feed.ItemID(""), result.Final.Active)
	assert.Equal(t, feed.ItemID(""), result.Final.Warm)
	for _, id := range []feed.ItemID{"p1", "p2", "p3"} {
		assert.Equal(t, coordinator.StateIdle, result.Final.StateOf(id))
	}
}

func TestJournal_Replay_DetectsTamperedEffects(t *testing.T) {
	j := openTestJournal(t)
	session := recordSession(t, j, "session-tampered")

	_, err := j.db.Exec(
		`UPDATE transitions SET effects = '["release(p1)"]' WHERE session_id = ? AND event = 'activate' AND item = 'p1'`,
		session)
	require.NoError(t, err)

	_, err = j.Replay(session)
	require.Error(t, err)

	var div *DivergenceError
	require.ErrorAs(t, err, &div)
	assert.Equal(t, session, div.Session)
	assert.Contains(t, div.Reason, "effects mismatch")
}

func TestJournal_Replay_DetectsSeqGap(t *testing.T) {
	j := openTestJournal(t)
	session := recordSession(t, j, "session-gap")

	_, err := j.db.Exec(`DELETE FROM transitions WHERE session_id = ? AND seq = 2`, session)
	require.NoError(t, err)

	_, err = j.Replay(session)
	var div *DivergenceError
	require.ErrorAs(t, err, &div)
	assert.Contains(t, div.Reason, "expected seq")
}

func TestJournal_Replay_UnknownSession(t *testing.T) {
	j := openTestJournal(t)
	_, err := j.Replay("no-such-session")
	assert.Error(t, err)
}

func TestJournal_Open_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedgate.db")

	j1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j1.Close())

	j2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j2.Close())
}
