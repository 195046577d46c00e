// Package session drives one combat's planning state machine. All host
// events funnel through the explicit transitions here — turn advances, plan
// edits, position requests and remote updates — so the core is testable
// without a host runtime.
//
// Neither server binary constructs a Session: this is the observer-side
// library for an embedding host (a virtual tabletop client, a bot), which
// maps its own events onto the On* transitions and forwards the staged
// envelopes to the relay. The HTTP and websocket surfaces talk to the same
// holder directly instead. See the package example for the wiring.
package session

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/catalog"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/logging"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/movement"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/phase"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/replication"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/turnctx"
)

var (
	ErrCombatEnded        = errors.New("combat has ended")
	ErrCombatantNotFound  = errors.New("combatant not found")
	ErrNotAuthorized      = errors.New("no write authority over this combatant")
	ErrUnknownFlag        = errors.New("unknown concentration flag")
	ErrTooManyFlags       = errors.New("at most two concentration flags may be active")
	ErrSlotGroupNotBlank  = errors.New("current phase already has selections")
	ErrFinishEarlyNotNow  = errors.New("finish-early is only actionable on the current slot")
	ErrInvalidSlot        = errors.New("invalid slot key")
	ErrUnknownAction      = errors.New("unknown action key")
	ErrInstantAlreadyUsed = errors.New("instantaneous action already spent this round")
	ErrUnknownReminder    = errors.New("unknown reminder kind")
)

// Identity is the acting observer's authority context.
type Identity struct {
	// Sub is the session subject (token identity).
	Sub string
	// GM grants write authority over every combatant in the combat.
	GM bool
	// ObserverID distinguishes this observer on the message channel.
	ObserverID string
}

// Session is the per-combat planning state machine for one observer. The
// holder runs one too — reading through its own pending writes like any
// other observer — plus the authoritative Holder on the relay side.
type Session struct {
	mu sync.Mutex

	combatID string
	identity Identity
	registry *catalog.Registry
	pending  *replication.PendingStore
	governor *movement.Governor
	send     func(replication.Envelope)
	// turns supplies the turn context before the first snapshot arrives.
	turns turnctx.Provider

	// snapshot is the last-known authoritative state.
	snapshot *tracker.Combat
	// enforcing gates movement tracking: only the observer controlling a
	// token enforces its movement, and only while it considers itself
	// active.
	enforcing bool
}

// Config wires a session.
type Config struct {
	CombatID string
	Identity Identity
	Registry *catalog.Registry
	Send     func(replication.Envelope)
	Snapshot *tracker.Combat
	Enforce  bool
	// Turns is optional; absent, the session holds at round 1, phase 1
	// until a snapshot arrives.
	Turns turnctx.Provider
}

func New(cfg Config) *Session {
	if cfg.Turns == nil {
		cfg.Turns = turnctx.Degraded(0, 0)
	}
	return &Session{
		combatID:  cfg.CombatID,
		identity:  cfg.Identity,
		registry:  cfg.Registry,
		pending:   replication.NewPendingStore(),
		governor:  movement.NewGovernor(),
		send:      cfg.Send,
		turns:     cfg.Turns,
		snapshot:  cfg.Snapshot,
		enforcing: cfg.Enforce,
	}
}

// Pending exposes the optimistic write store (read-through cache).
func (s *Session) Pending() *replication.PendingStore { return s.pending }

// Snapshot returns the last-known authoritative combat state.
func (s *Session) Snapshot() *tracker.Combat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// EffectivePlan returns the combatant's plan as this observer sees it:
// authoritative snapshot patched with the observer's own unconfirmed writes.
func (s *Session) EffectivePlan(combatantUUID string) (*tracker.CombatantPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.effectivePlanLocked(combatantUUID)
}

func (s *Session) effectivePlanLocked(combatantUUID string) (*tracker.CombatantPlan, error) {
	if s.snapshot == nil {
		return nil, ErrCombatantNotFound
	}
	plan := s.snapshot.PlanFor(combatantUUID)
	if plan == nil {
		return nil, ErrCombatantNotFound
	}
	return s.pending.OverlayPlan(s.combatID, plan), nil
}

// canWrite performs the local authority check. A violation is rejected
// before any message leaves this observer.
func (s *Session) canWrite(plan *tracker.CombatantPlan) bool {
	if s.identity.GM {
		return true
	}
	return plan.OwnerSub != "" && plan.OwnerSub == s.identity.Sub
}

// stage records one optimistic write and emits the matching update request.
func (s *Session) stage(combatantUUID, planPath string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	path := replication.JoinPath(combatantUUID, planPath)
	seq := s.pending.Stage(s.combatID, path, raw)
	if s.send != nil {
		s.send(replication.Envelope{
			Type:     replication.MsgSetStatePath,
			CombatID: s.combatID,
			Path:     path,
			Value:    raw,
			Seq:      seq,
			Origin:   s.identity.ObserverID,
		})
	}
	return nil
}

// OnPlanEdit sets a slot's action selection. One logical edit fans out as
// four independent path writes (action, auto flag, legacy cost, finish-early
// reset); they are deliberately not atomic as a group.
func (s *Session) OnPlanEdit(combatantUUID string, slot tracker.SlotKey, actionKey string, auto bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil && s.snapshot.Status == tracker.StatusEnded {
		return ErrCombatEnded
	}
	plan, err := s.effectivePlanLocked(combatantUUID)
	if err != nil {
		return err
	}
	if !s.canWrite(plan) {
		return ErrNotAuthorized
	}
	ks := slot.String()
	if _, err := tracker.ParseSlotKey(ks); err != nil {
		return ErrInvalidSlot
	}
	if actionKey != "" && s.registry != nil {
		if _, ok := s.registry.Get(actionKey); !ok {
			return ErrUnknownAction
		}
	}
	if err := s.stage(combatantUUID, tracker.PathPlanActions+"."+ks, actionKey); err != nil {
		return err
	}
	if err := s.stage(combatantUUID, tracker.PathPlanAuto+"."+ks, auto); err != nil {
		return err
	}
	if err := s.stage(combatantUUID, tracker.PathPlanCosts+"."+ks, nil); err != nil {
		return err
	}
	return s.stage(combatantUUID, tracker.PathFinishEarly+"."+ks, false)
}

// OnFlagToggle enables or disables a concentration flag, enforcing the
// write-boundary invariants: the flag cap and the blank-slot-group rule.
func (s *Session) OnFlagToggle(combatantUUID string, flag tracker.ConcentrationFlag, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil && s.snapshot.Status == tracker.StatusEnded {
		return ErrCombatEnded
	}
	plan, err := s.effectivePlanLocked(combatantUUID)
	if err != nil {
		return err
	}
	if !s.canWrite(plan) {
		return ErrNotAuthorized
	}
	if !knownFlag(flag) {
		return ErrUnknownFlag
	}
	if on {
		if plan.Flags[flag] {
			return nil
		}
		if plan.ActiveFlagCount() >= tracker.MaxActiveFlags {
			return ErrTooManyFlags
		}
		if s.currentGroupHasSelections(plan) {
			return ErrSlotGroupNotBlank
		}
	}
	if err := s.stage(combatantUUID, tracker.PathFlags+"."+string(flag), on); err != nil {
		return err
	}
	if flag == tracker.FlagHoldAction && !on {
		// Dropping hold-action clears the held-action record with it.
		return s.stage(combatantUUID, tracker.PathHoldAction, nil)
	}
	return nil
}

// OnHoldAction records which slot's action is being held while the
// hold-action flag is active.
func (s *Session) OnHoldAction(combatantUUID string, meta tracker.HoldActionMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.effectivePlanLocked(combatantUUID)
	if err != nil {
		return err
	}
	if !s.canWrite(plan) {
		return ErrNotAuthorized
	}
	if _, err := tracker.ParseSlotKey(meta.PendingKey); err != nil {
		return ErrInvalidSlot
	}
	return s.stage(combatantUUID, tracker.PathHoldAction, meta)
}

// OnFinishEarly toggles the finish-early flag; it is only accepted on the
// slot matching the evaluator's current position.
func (s *Session) OnFinishEarly(combatantUUID string, slot tracker.SlotKey, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.effectivePlanLocked(combatantUUID)
	if err != nil {
		return err
	}
	if !s.canWrite(plan) {
		return ErrNotAuthorized
	}
	now := s.nowLocked()
	if !slot.SameGroup(now) {
		return ErrFinishEarlyNotNow
	}
	return s.stage(combatantUUID, tracker.PathFinishEarly+"."+slot.String(), on)
}

// OnInstantUse spends the per-round instantaneous action on a catalog key.
func (s *Session) OnInstantUse(combatantUUID, actionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.effectivePlanLocked(combatantUUID)
	if err != nil {
		return err
	}
	if !s.canWrite(plan) {
		return ErrNotAuthorized
	}
	if plan.InstantAction != tracker.InstantAvailable {
		return ErrInstantAlreadyUsed
	}
	if s.registry != nil {
		if _, ok := s.registry.Get(actionKey); !ok {
			return ErrUnknownAction
		}
	}
	return s.stage(combatantUUID, tracker.PathInstantAction, actionKey)
}

// OnReminderAck acknowledges a due reminder for the current round, staging
// the matching ack-round write so the reminder stops surfacing.
func (s *Session) OnReminderAck(combatantUUID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.effectivePlanLocked(combatantUUID)
	if err != nil {
		return err
	}
	if !s.canWrite(plan) {
		return ErrNotAuthorized
	}
	round := s.nowLocked().Round
	switch kind {
	case tracker.ReminderMentalFocus:
		return s.stage(combatantUUID, tracker.PathMentalAck, round)
	case tracker.ReminderEndurance:
		return s.stage(combatantUUID, tracker.PathEnduranceAck, round)
	}
	return ErrUnknownReminder
}

// OnBonusCount sets how many slots carry a bonus sub-slot this round.
func (s *Session) OnBonusCount(combatantUUID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.effectivePlanLocked(combatantUUID)
	if err != nil {
		return err
	}
	if !s.canWrite(plan) {
		return ErrNotAuthorized
	}
	if count < 0 {
		count = 0
	}
	if count > tracker.SlotsPerRound {
		count = tracker.SlotsPerRound
	}
	return s.stage(combatantUUID, tracker.PathBonusCount, count)
}

// OnTurnAdvance moves the session to a new round/phase. Crossing a round
// boundary resets every owned combatant's instantaneous action.
func (s *Session) OnTurnAdvance(round, displayedPhase int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return
	}
	prevRound := s.snapshot.Round
	s.snapshot.Round = round
	s.snapshot.Phase = displayedPhase
	if round <= prevRound {
		return
	}
	for i := range s.snapshot.Plans {
		p := &s.snapshot.Plans[i]
		if !s.canWrite(p) {
			continue
		}
		if p.InstantAction != tracker.InstantAvailable {
			if err := s.stage(p.CombatantUUID, tracker.PathInstantAction, tracker.InstantAvailable); err != nil {
				logging.Error("failed to stage instant-action reset", err, logging.Fields{"combatant_id": p.CombatantUUID})
			}
		}
	}
}

// OnRemoteUpdate folds a holder message into the local snapshot. Confirmed
// writes from this observer clear their pending entries; failed writes are
// retained so local reads stay consistent with the last intent.
func (s *Session) OnRemoteUpdate(env replication.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch env.Type {
	case replication.MsgStatePath:
		if s.snapshot != nil {
			uuid, planPath, err := replication.SplitPath(env.Path)
			if err == nil {
				plan := s.snapshot.PlanFor(uuid)
				if plan == nil {
					np := tracker.NewCombatantPlan(uuid, "", "")
					np.CombatID = s.snapshot.ID
					s.snapshot.Plans = append(s.snapshot.Plans, *np)
					plan = &s.snapshot.Plans[len(s.snapshot.Plans)-1]
				}
				var value interface{}
				if len(env.Value) > 0 {
					_ = json.Unmarshal(env.Value, &value)
				}
				if err := plan.SetPath(planPath, value); err != nil {
					logging.Warn("remote update not applicable", logging.Fields{"path": env.Path, "error": err.Error()})
				}
			}
		}
		if env.Origin == s.identity.ObserverID {
			s.pending.Confirm(env.CombatID, env.Path, env.Seq)
		}
	case replication.MsgWriteFailed:
		// Deliberate availability-over-consistency: keep the optimistic
		// value, warn, and do not retry.
		logging.Warn("authoritative write failed; keeping optimistic value", logging.Fields{
			"combat_id": env.CombatID,
			"path":      env.Path,
			"error":     env.Error,
		})
	case replication.MsgState:
		var combat tracker.Combat
		if err := json.Unmarshal(env.State, &combat); err != nil {
			logging.Error("failed to decode state snapshot", err, logging.Fields{"combat_id": env.CombatID})
			return
		}
		s.snapshot = &combat
	}
}

// OnPositionRequest rules on a committed token position change using the
// read-through plan view, so a just-edited selection governs immediately.
func (s *Session) OnPositionRequest(combatantUUID string, from, to movement.Point, gridSize float64) (movement.Verdict, error) {
	return s.governPosition(combatantUUID, from, to, gridSize, false)
}

// OnPositionChanging rules on an in-flight drag without committing it. The
// verdict shows what the drop would produce; the ledger only advances once
// OnPositionRequest commits the move.
func (s *Session) OnPositionChanging(combatantUUID string, from, to movement.Point, gridSize float64) (movement.Verdict, error) {
	return s.governPosition(combatantUUID, from, to, gridSize, true)
}

func (s *Session) governPosition(combatantUUID string, from, to movement.Point, gridSize float64, preview bool) (movement.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, err := s.effectivePlanLocked(combatantUUID)
	if err != nil {
		return movement.Verdict{}, err
	}
	enforce := s.enforcing && s.canWrite(plan)
	req := movement.Request{
		TokenID:       combatantUUID,
		From:          from,
		To:            to,
		GridSize:      gridSize,
		WindowID:      s.windowIDLocked(),
		Round:         s.snapshot.Round,
		GroupSlots:    s.groupSlotsLocked(),
		MoveActionKey: catalog.MoveActionKey,
		Enforcing:     enforce,
		Preview:       preview,
	}
	return s.governor.Govern(plan, req), nil
}

// Governor exposes the movement stores for view building.
func (s *Session) Governor() *movement.Governor { return s.governor }

// Now returns the evaluation position for the session's current turn state.
func (s *Session) Now() tracker.SlotKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowLocked()
}

func (s *Session) nowLocked() tracker.SlotKey {
	if s.snapshot == nil {
		ctx := s.turns.Current()
		return phase.Now(ctx.Round, ctx.Phase, ctx.PhaseCount)
	}
	return phase.Now(s.snapshot.Round, s.snapshot.Phase, s.snapshot.PhaseCount)
}

func (s *Session) windowIDLocked() string {
	now := s.nowLocked()
	return now.String()
}

func (s *Session) groupSlotsLocked() []int {
	var sp, first int
	if s.snapshot == nil {
		ctx := s.turns.Current()
		sp = ctx.SlotsPerPhase
		first = phase.FirstSlot(ctx.Phase, ctx.PhaseCount)
	} else {
		sp = s.snapshot.SlotsPerPhase()
		first = phase.FirstSlot(s.snapshot.Phase, s.snapshot.PhaseCount)
	}
	slots := make([]int, 0, sp)
	for i := 0; i < sp; i++ {
		if slot := first + i; slot <= tracker.SlotsPerRound {
			slots = append(slots, slot)
		}
	}
	return slots
}

// currentGroupHasSelections reports whether any sub-slot of the current
// slot-group carries a non-blank selection.
func (s *Session) currentGroupHasSelections(plan *tracker.CombatantPlan) bool {
	if s.snapshot == nil {
		return false
	}
	for _, slot := range s.groupSlotsLocked() {
		main := tracker.SlotKey{Round: s.snapshot.Round, Slot: slot, Kind: tracker.SlotMain}
		if plan.ActionAt(main) != "" {
			return true
		}
		bonus := tracker.SlotKey{Round: s.snapshot.Round, Slot: slot, Kind: tracker.SlotBonus}
		if plan.ActionAt(bonus) != "" {
			return true
		}
	}
	return false
}

func knownFlag(flag tracker.ConcentrationFlag) bool {
	for _, f := range tracker.KnownFlags {
		if f == flag {
			return true
		}
	}
	return false
}
