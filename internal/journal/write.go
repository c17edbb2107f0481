package journal

import (
	"fmt"

	"github.com/carrotlabs/feedgate/internal/canon"
	"github.com/carrotlabs/feedgate/internal/coordinator"
)

// Record appends one transition row. Implements coordinator.Recorder, so a
// Journal can be handed to the coordinator directly via WithRecorder.
//
// Called under the coordinator's lock; the insert is a single statement on
// the journal's one connection.
func (j *Journal) Record(rec coordinator.TransitionRecord) error {
	effects, err := encodeEffects(rec.Effects)
	if err != nil {
		return fmt.Errorf("journal: encode effects: %w", err)
	}

	_, err = j.db.Exec(`
		INSERT INTO transitions
			(session_id, seq, at_unix_ms, event, item, fast_scroll, from_state, to_state, effects)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Session,
		rec.Seq,
		rec.At.UnixMilli(),
		rec.Event,
		string(rec.Item),
		boolToInt(rec.FastScroll),
		rec.From,
		rec.To,
		effects,
	)
	if err != nil {
		return fmt.Errorf("journal: insert transition %s/%d: %w", rec.Session, rec.Seq, err)
	}
	return nil
}

// encodeEffects renders the effect list as canonical JSON, so identical
// transitions produce byte-identical rows regardless of writer.
func encodeEffects(effects []string) (string, error) {
	if effects == nil {
		effects = []string{}
	}
	data, err := canon.Marshal(effects)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
