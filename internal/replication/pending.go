package replication

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/logging"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

type pendingKey struct {
	combatID string
	path     string
}

type pendingEntry struct {
	value json.RawMessage
	seq   uint64
}

// PendingWrite is one staged, unconfirmed update in submission order.
type PendingWrite struct {
	CombatID string
	Path     string
	Value    json.RawMessage
	Seq      uint64
}

// PendingStore holds an observer's unconfirmed writes. Reads overlay these
// on top of the last-known authoritative snapshot, so the observer's own
// edits are visible immediately. A later write to the same path supersedes
// the earlier one; confirmation clears an entry only when nothing newer has
// been staged for that path.
type PendingStore struct {
	mu      sync.Mutex
	seq     uint64
	entries map[pendingKey]pendingEntry
}

func NewPendingStore() *PendingStore {
	return &PendingStore{entries: map[pendingKey]pendingEntry{}}
}

// Stage records an unconfirmed write and returns its sequence number.
func (s *PendingStore) Stage(combatID, path string, value json.RawMessage) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.entries[pendingKey{combatID, path}] = pendingEntry{value: value, seq: s.seq}
	return s.seq
}

// Confirm clears a staged write once the holder persisted it, unless a newer
// write to the same path superseded it in the meantime.
func (s *PendingStore) Confirm(combatID, path string, seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pendingKey{combatID, path}
	if e, ok := s.entries[k]; ok && e.seq <= seq {
		delete(s.entries, k)
	}
}

// Len reports how many writes remain unconfirmed.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ForCombat returns the staged writes for one combat in submission order.
func (s *PendingStore) ForCombat(combatID string) []PendingWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingWrite, 0, len(s.entries))
	for k, e := range s.entries {
		if k.combatID != combatID {
			continue
		}
		out = append(out, PendingWrite{CombatID: k.combatID, Path: k.path, Value: e.value, Seq: e.seq})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// OverlayPlan returns a copy of the authoritative plan patched with this
// observer's staged writes for the combatant, applied in submission order.
// The authoritative record itself is never touched.
func (s *PendingStore) OverlayPlan(combatID string, plan *tracker.CombatantPlan) *tracker.CombatantPlan {
	if plan == nil {
		return nil
	}
	patched := plan.Clone()
	for _, w := range s.ForCombat(combatID) {
		uuid, planPath, err := SplitPath(w.Path)
		if err != nil || uuid != plan.CombatantUUID {
			continue
		}
		var value interface{}
		if len(w.Value) > 0 {
			if err := json.Unmarshal(w.Value, &value); err != nil {
				continue
			}
		}
		if err := patched.SetPath(planPath, value); err != nil {
			// A pending write the plan cannot absorb is dropped from the
			// view but retained in the store; it stays consistent with the
			// user's last intent until superseded.
			logging.Warn("pending write not applicable to overlay", logging.Fields{"path": w.Path, "error": err.Error()})
		}
	}
	return patched
}
