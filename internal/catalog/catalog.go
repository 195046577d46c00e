// Package catalog is the versioned action registry. A built-in RMU action
// set is always present; an external JSON override is merged over it so an
// override can re-tune or add actions but can never make one disappear or
// leave the catalog empty.
package catalog

import (
	"fmt"
	"os"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/logging"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

// Source reports which load path produced a registry, so callers and tests
// can distinguish "using defaults" from "defaults merged with an override".
type Source string

const (
	SourceDefaults Source = "defaults"
	SourceMerged   Source = "merged"
)

// MoveActionKey is the catalog key the movement governor treats as the
// explicit movement action.
const MoveActionKey = "move"

// defaultActions is the built-in catalog, in display order. Range-cost
// entries (max > min) may be paid across multiple slots and carry the
// -25/AP shortfall penalty when under-paid.
var defaultActions = []tracker.ActionDefinition{
	{Key: MoveActionKey, Label: "Move", MinCost: 1, MaxCost: 1, Icon: "icons/move.svg"},
	{Key: "melee_attack", Label: "Melee Attack", MinCost: 2, MaxCost: 2, Icon: "icons/melee.svg"},
	{Key: "ranged_attack", Label: "Ranged Attack", MinCost: 2, MaxCost: 2, Icon: "icons/ranged.svg"},
	{Key: "reload", Label: "Reload", MinCost: 1, MaxCost: 1, Icon: "icons/reload.svg"},
	{Key: "draw_weapon", Label: "Draw / Change Weapon", MinCost: 1, MaxCost: 1, Icon: "icons/draw.svg"},
	{Key: "spell_cast", Label: "Cast Spell", MinCost: 2, MaxCost: 4, Icon: "icons/spell.svg"},
	{Key: "spell_prep", Label: "Prepare Spell", MinCost: 1, MaxCost: 3, Icon: "icons/prep.svg"},
	{Key: "maneuver", Label: "Moving Maneuver", MinCost: 1, MaxCost: 4, Icon: "icons/maneuver.svg"},
	{Key: "perception", Label: "Perception", MinCost: 1, MaxCost: 4, Icon: "icons/perception.svg"},
	{Key: "parry", Label: "Parry", MinCost: 1, MaxCost: 1, Icon: "icons/parry.svg"},
}

// Registry is an immutable snapshot of the action catalog for one
// evaluation pass.
type Registry struct {
	actions map[string]tracker.ActionDefinition
	order   []string
	source  Source
	version int
}

// Defaults returns a registry holding only the built-in action set.
func Defaults() *Registry {
	r := &Registry{
		actions: make(map[string]tracker.ActionDefinition, len(defaultActions)),
		source:  SourceDefaults,
		version: 1,
	}
	for _, a := range defaultActions {
		r.actions[a.Key] = a
		r.order = append(r.order, a.Key)
	}
	return r
}

// Load builds the registry from an optional override file. Any problem with
// the override — missing file is fine, anything else is logged — falls back
// to the built-in defaults; a bad override is never surfaced to the end
// user as a failure.
func Load(overridePath string) *Registry {
	if overridePath == "" {
		return Defaults()
	}
	b, err := os.ReadFile(overridePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Error("failed to read catalog override; using defaults", err, logging.Fields{"path": overridePath})
		}
		return Defaults()
	}
	r, err := Merge(b)
	if err != nil {
		logging.Error("invalid catalog override; using defaults", err, logging.Fields{"path": overridePath})
		return Defaults()
	}
	logging.Info("catalog override merged", logging.Fields{"path": overridePath, "actions": len(r.order)})
	return r
}

// Get returns the definition for an action key.
func (r *Registry) Get(key string) (tracker.ActionDefinition, bool) {
	a, ok := r.actions[key]
	return a, ok
}

// Actions returns the catalog in display order.
func (r *Registry) Actions() []tracker.ActionDefinition {
	out := make([]tracker.ActionDefinition, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.actions[k])
	}
	return out
}

// Map returns the key → definition mapping consumed by one evaluation pass.
func (r *Registry) Map() map[string]tracker.ActionDefinition {
	out := make(map[string]tracker.ActionDefinition, len(r.actions))
	for k, v := range r.actions {
		out[k] = v
	}
	return out
}

// Source reports which load path produced this registry.
func (r *Registry) Source() Source { return r.source }

// Version increments whenever an override changes the catalog contents.
func (r *Registry) Version() int { return r.version }

// MaxCost returns the largest MaxCost in the catalog; the evaluation window
// must look back far enough to cover it.
func (r *Registry) MaxCost() float64 {
	max := 0.0
	for _, a := range r.actions {
		if a.MaxCost > max {
			max = a.MaxCost
		}
	}
	return max
}

func validateDefinition(a tracker.ActionDefinition) error {
	if a.Key == "" {
		return fmt.Errorf("action entry missing 'key'")
	}
	if a.Label == "" {
		return fmt.Errorf("action %q missing 'label'", a.Key)
	}
	if a.MinCost < 0 {
		return fmt.Errorf("action %q: min_cost must be >= 0", a.Key)
	}
	if a.MaxCost < a.MinCost {
		return fmt.Errorf("action %q: max_cost %v is below min_cost %v", a.Key, a.MaxCost, a.MinCost)
	}
	return nil
}
