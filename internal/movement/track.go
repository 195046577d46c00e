package movement

import (
	"math"
	"sync"
)

// Point is a token position in feet.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// distanceEpsilon absorbs floating-point noise when comparing distances.
const distanceEpsilon = 1e-9

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Track is the per-token movement ledger for the active slot-group. It is
// ephemeral client state, never replicated or persisted.
type Track struct {
	// ActiveWindowID identifies the slot-group the track was last reset for.
	ActiveWindowID string
	// OriginCenter and OriginTopLeft record the position at the start of the
	// slot-group, kept so a move can be undone.
	OriginCenter  Point
	OriginTopLeft Point
	// LastCenter is the position at the last committed sample.
	LastCenter Point
	// UsedBySlot maps sub-slot keys (or incidental group keys) to feet
	// consumed within the active slot-group.
	UsedBySlot map[string]float64
	// Round and RoundUsed accumulate the round total for the round cap.
	Round     int
	RoundUsed float64
	// PrevGroupDistance is the carry-over snapshot: the total moved in the
	// slot-group named by PrevWindowID. It survives the round boundary
	// solely so the cross-round boost rule can see it.
	PrevGroupDistance float64
	// PrevWindowID names the slot-group the snapshot was taken from. The
	// boost rule only honours the snapshot when that group immediately
	// precedes the active one; a group with no requests breaks the streak.
	PrevWindowID string
}

// previewCopy returns a detached copy of the ledger; preview rulings mutate
// the copy and leave the committed totals untouched.
func (t *Track) previewCopy() *Track {
	cp := *t
	cp.UsedBySlot = make(map[string]float64, len(t.UsedBySlot))
	for k, v := range t.UsedBySlot {
		cp.UsedBySlot[k] = v
	}
	return &cp
}

// GroupUsed sums the feet consumed in the active slot-group.
func (t *Track) GroupUsed() float64 {
	sum := 0.0
	for _, v := range t.UsedBySlot {
		sum += v
	}
	return sum
}

// TrackStore owns the movement tracks for one combat. Stores are created per
// combat and injected, so teardown and tests are deterministic.
type TrackStore struct {
	mu     sync.Mutex
	tracks map[string]*Track
}

func NewTrackStore() *TrackStore {
	return &TrackStore{tracks: map[string]*Track{}}
}

// Get returns the track for a token, creating it on first use.
func (s *TrackStore) Get(tokenID string) *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[tokenID]
	if !ok {
		t = &Track{UsedBySlot: map[string]float64{}}
		s.tracks[tokenID] = t
	}
	return t
}

// Advance resets a token's track for a new slot-group, snapshotting the
// finished group's total for the boost lookup. Crossing a round boundary
// zeroes the round accumulator; the snapshot deliberately survives it.
func (s *TrackStore) Advance(tokenID, windowID string, round int, center, topLeft Point) *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[tokenID]
	if !ok {
		t = &Track{UsedBySlot: map[string]float64{}}
		s.tracks[tokenID] = t
	}
	if t.ActiveWindowID == windowID {
		return t
	}
	t.PrevGroupDistance = t.GroupUsed()
	t.PrevWindowID = t.ActiveWindowID
	t.UsedBySlot = map[string]float64{}
	t.ActiveWindowID = windowID
	t.OriginCenter = center
	t.OriginTopLeft = topLeft
	t.LastCenter = center
	if t.Round != round {
		t.Round = round
		t.RoundUsed = 0
	}
	return t
}

// Remove drops a token's track entirely.
func (s *TrackStore) Remove(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracks, tokenID)
}

// Preview is the speculative allocation built while a position change is in
// flight; it mirrors the track's allocation shape and is discarded on commit
// or interruption.
type Preview struct {
	TokenID    string
	Allocation map[string]float64
	Distance   float64
}

// PreviewStore owns in-flight previews for one combat.
type PreviewStore struct {
	mu       sync.Mutex
	previews map[string]*Preview
}

func NewPreviewStore() *PreviewStore {
	return &PreviewStore{previews: map[string]*Preview{}}
}

func (s *PreviewStore) Put(p *Preview) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previews[p.TokenID] = p
}

func (s *PreviewStore) Get(tokenID string) *Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previews[tokenID]
}

// Discard drops a token's preview (commit or interruption).
func (s *PreviewStore) Discard(tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.previews, tokenID)
}
