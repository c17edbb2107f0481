package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carrotlabs/feedgate/internal/coordinator"
	"github.com/carrotlabs/feedgate/internal/feed"
)

// SessionInfo summarizes one recorded session.
type SessionInfo struct {
	ID          string
	Start       time.Time
	End         time.Time
	Transitions int
}

// Sessions lists recorded sessions ordered by start time.
func (j *Journal) Sessions() ([]SessionInfo, error) {
	rows, err := j.db.Query(`
		SELECT session_id, MIN(at_unix_ms), MAX(at_unix_ms), COUNT(*)
		FROM transitions
		GROUP BY session_id
		ORDER BY MIN(at_unix_ms), session_id`)
	if err != nil {
		return nil, fmt.Errorf("journal: list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var (
			info       SessionInfo
			start, end int64
		)
		if err := rows.Scan(&info.ID, &start, &end, &info.Transitions); err != nil {
			return nil, fmt.Errorf("journal: scan session: %w", err)
		}
		info.Start = time.UnixMilli(start)
		info.End = time.UnixMilli(end)
		sessions = append(sessions, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate sessions: %w", err)
	}
	return sessions, nil
}

// Transitions returns a session's rows in seq order.
func (j *Journal) Transitions(session string) ([]coordinator.TransitionRecord, error) {
	rows, err := j.db.Query(`
		SELECT session_id, seq, at_unix_ms, event, item, fast_scroll, from_state, to_state, effects
		FROM transitions
		WHERE session_id = ?
		ORDER BY seq`, session)
	if err != nil {
		return nil, fmt.Errorf("journal: read session %s: %w", session, err)
	}
	defer rows.Close()

	var records []coordinator.TransitionRecord
	for rows.Next() {
		var (
			rec     coordinator.TransitionRecord
			atMs    int64
			item    string
			fast    int
			effects string
		)
		if err := rows.Scan(&rec.Session, &rec.Seq, &atMs, &rec.Event, &item, &fast, &rec.From, &rec.To, &effects); err != nil {
			return nil, fmt.Errorf("journal: scan transition: %w", err)
		}
		rec.At = time.UnixMilli(atMs)
		rec.Item = feed.ItemID(item)
		rec.FastScroll = fast != 0
		if err := json.Unmarshal([]byte(effects), &rec.Effects); err != nil {
			return nil, fmt.Errorf("journal: decode effects for %s/%d: %w", rec.Session, rec.Seq, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate session %s: %w", session, err)
	}
	return records, nil
}
