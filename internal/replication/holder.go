package replication

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/logging"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

// PlanStore is the persistence surface the holder writes through.
type PlanStore interface {
	GetCombatByCode(code string) (*tracker.Combat, error)
	SavePlan(plan *tracker.CombatantPlan) error
}

// Holder owns the authoritative copy of every plan in a combat. It applies
// update requests one at a time in arrival order; non-holders never mutate
// the authoritative state, they only send requests here.
type Holder struct {
	store PlanStore
	// snapshots deduplicates concurrent initState loads for the same combat.
	snapshots singleflight.Group

	// locks serializes writes per combat. Every set-path is a load-modify-save
	// of one plan row, and requests arrive from both the relay loop and HTTP
	// handler goroutines; without the lock two confirmed writes to different
	// paths of the same plan can lose one.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewHolder(store PlanStore) *Holder {
	return &Holder{store: store, locks: make(map[string]*sync.Mutex)}
}

func (h *Holder) combatLock(combatID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[combatID]
	if !ok {
		l = &sync.Mutex{}
		h.locks[combatID] = l
	}
	return l
}

// Outcome is what one applied request produces: an optional broadcast for
// every observer and an optional direct reply to the origin.
type Outcome struct {
	Broadcast *Envelope
	Reply     *Envelope
}

// Apply processes one inbound request. It never returns an error for a
// failed persist — that is reported to the origin via MsgWriteFailed while
// the optimistic value stays live on the origin's side.
func (h *Holder) Apply(env Envelope) Outcome {
	switch env.Type {
	case MsgSetStatePath:
		return h.applySetPath(env, nil)
	case MsgInitState:
		return h.applyInitState(env)
	default:
		return Outcome{Reply: &Envelope{
			Type:     MsgWriteFailed,
			CombatID: env.CombatID,
			Path:     env.Path,
			Seq:      env.Seq,
			Origin:   env.Origin,
			Error:    fmt.Sprintf("unsupported message type %q", env.Type),
		}}
	}
}

// ApplyAuthorized processes one inbound request on behalf of the session
// identified by sub. Set-path writes are permitted only to the combat's GM
// or to the owner of the targeted plan; everything else is answered with
// MsgWriteFailed and never touches the store.
func (h *Holder) ApplyAuthorized(env Envelope, sub string, gm bool) Outcome {
	if env.Type != MsgSetStatePath {
		return h.Apply(env)
	}
	return h.applySetPath(env, func(combat *tracker.Combat, plan *tracker.CombatantPlan) error {
		if gm && combat.GMSub == sub {
			return nil
		}
		if plan != nil && plan.OwnerSub != "" && plan.OwnerSub == sub {
			return nil
		}
		return fmt.Errorf("session %q may not edit this combatant", sub)
	})
}

func (h *Holder) applySetPath(env Envelope, guard func(*tracker.Combat, *tracker.CombatantPlan) error) Outcome {
	fail := func(err error) Outcome {
		logging.Warn("authoritative write failed; origin keeps optimistic value", logging.Fields{
			"combat_id": env.CombatID,
			"path":      env.Path,
			"observer":  env.Origin,
			"error":     err.Error(),
		})
		return Outcome{Reply: &Envelope{
			Type:     MsgWriteFailed,
			CombatID: env.CombatID,
			Path:     env.Path,
			Seq:      env.Seq,
			Origin:   env.Origin,
			Error:    err.Error(),
		}}
	}

	lock := h.combatLock(env.CombatID)
	lock.Lock()
	defer lock.Unlock()

	combat, err := h.store.GetCombatByCode(env.CombatID)
	if err != nil {
		return fail(err)
	}
	uuid, planPath, err := SplitPath(env.Path)
	if err != nil {
		return fail(err)
	}
	plan := combat.PlanFor(uuid)
	if guard != nil {
		if err := guard(combat, plan); err != nil {
			return fail(err)
		}
	}
	if plan == nil {
		// Plans are created lazily the first time any observer needs them.
		plan = tracker.NewCombatantPlan(uuid, "", "")
		plan.CombatID = combat.ID
	}
	var value interface{}
	if len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, &value); err != nil {
			return fail(err)
		}
	}
	if err := plan.SetPath(planPath, value); err != nil {
		return fail(err)
	}
	if err := h.store.SavePlan(plan); err != nil {
		return fail(err)
	}
	return Outcome{Broadcast: &Envelope{
		Type:     MsgStatePath,
		CombatID: env.CombatID,
		Path:     env.Path,
		Value:    env.Value,
		Seq:      env.Seq,
		Origin:   env.Origin,
	}}
}

func (h *Holder) applyInitState(env Envelope) Outcome {
	v, err, _ := h.snapshots.Do(env.CombatID, func() (interface{}, error) {
		return h.store.GetCombatByCode(env.CombatID)
	})
	if err != nil {
		return Outcome{Reply: &Envelope{
			Type:     MsgWriteFailed,
			CombatID: env.CombatID,
			Origin:   env.Origin,
			Error:    err.Error(),
		}}
	}
	combat := v.(*tracker.Combat)
	raw, err := json.Marshal(combat)
	if err != nil {
		return Outcome{Reply: &Envelope{
			Type:     MsgWriteFailed,
			CombatID: env.CombatID,
			Origin:   env.Origin,
			Error:    err.Error(),
		}}
	}
	return Outcome{Reply: &Envelope{
		Type:     MsgState,
		CombatID: env.CombatID,
		Origin:   env.Origin,
		State:    raw,
	}}
}
