package tracker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Path segments accepted by SetPath. Update requests address plan fields by
// dotted path so a single envelope type covers every edit.
const (
	PathBonusCount    = "bonusCount"
	PathInstantAction = "instantAction"
	PathFlags         = "flags"
	PathHoldAction    = "holdAction"
	PathPlanActions   = "planActions"
	PathPlanAuto      = "planAuto"
	PathPlanCosts     = "planCosts"
	PathFinishEarly   = "finishEarly"
	PathMovement      = "movement"
	PathMentalStart   = "mentalFocusStartRound"
	PathMentalAck     = "mentalFocusAckRound"
	PathEnduranceAck  = "enduranceAckRound"
)

func asString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func asBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return b, nil
}

func asNumber(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func reencode(v interface{}, into interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, into)
}

// SetPath applies one path-scoped update to the plan. The value is a decoded
// JSON value as carried by an update envelope. Unknown paths and malformed
// values are rejected with an error and leave the plan untouched; SetPath
// performs no invariant checks beyond shape — those belong to the write
// boundary, not to path application (a holder must be able to apply a
// replicated value verbatim).
func (p *CombatantPlan) SetPath(path string, value interface{}) error {
	head, rest, _ := strings.Cut(path, ".")
	switch head {
	case PathBonusCount:
		n, err := asNumber(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		p.BonusCount = int(n)
	case PathInstantAction:
		s, err := asString(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		p.InstantAction = s
	case PathFlags:
		if rest == "" {
			return fmt.Errorf("path %s: missing flag name", path)
		}
		on, err := asBool(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		if p.Flags == nil {
			p.Flags = map[ConcentrationFlag]bool{}
		}
		p.Flags[ConcentrationFlag(rest)] = on
	case PathHoldAction:
		if value == nil {
			p.HoldAction = nil
			return nil
		}
		var meta HoldActionMeta
		if err := reencode(value, &meta); err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		p.HoldAction = &meta
	case PathPlanActions:
		if _, err := ParseSlotKey(rest); err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		s, err := asString(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		if p.PlanActions == nil {
			p.PlanActions = map[string]string{}
		}
		p.PlanActions[rest] = s
	case PathPlanAuto:
		if _, err := ParseSlotKey(rest); err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		b, err := asBool(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		if p.PlanAuto == nil {
			p.PlanAuto = map[string]bool{}
		}
		p.PlanAuto[rest] = b
	case PathPlanCosts:
		if _, err := ParseSlotKey(rest); err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		if p.PlanCosts == nil {
			p.PlanCosts = map[string]*float64{}
		}
		if value == nil {
			p.PlanCosts[rest] = nil
			return nil
		}
		n, err := asNumber(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		p.PlanCosts[rest] = &n
	case PathFinishEarly:
		if _, err := ParseSlotKey(rest); err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		b, err := asBool(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		if p.FinishEarly == nil {
			p.FinishEarly = map[string]bool{}
		}
		p.FinishEarly[rest] = b
	case PathMovement:
		if rest == "" {
			var stats MovementStats
			if err := reencode(value, &stats); err != nil {
				return fmt.Errorf("path %s: %w", path, err)
			}
			p.Movement = stats
			return nil
		}
		return p.setMovementField(rest, value)
	case PathMentalStart:
		n, err := asNumber(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		p.MentalFocusStartRound = int(n)
	case PathMentalAck:
		n, err := asNumber(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		p.MentalFocusAckRound = int(n)
	case PathEnduranceAck:
		n, err := asNumber(value)
		if err != nil {
			return fmt.Errorf("path %s: %w", path, err)
		}
		p.EnduranceAckRound = int(n)
	default:
		return fmt.Errorf("unknown plan path %q", path)
	}
	return nil
}

func (p *CombatantPlan) setMovementField(field string, value interface{}) error {
	switch field {
	case "bmrPerSlot":
		n, err := asNumber(value)
		if err != nil {
			return fmt.Errorf("movement.%s: %w", field, err)
		}
		p.Movement.BMRPerSlot = n
	case "carriedWeight":
		n, err := asNumber(value)
		if err != nil {
			return fmt.Errorf("movement.%s: %w", field, err)
		}
		p.Movement.CarriedWeight = n
	case "bodyWeight":
		n, err := asNumber(value)
		if err != nil {
			return fmt.Errorf("movement.%s: %w", field, err)
		}
		p.Movement.BodyWeight = n
	case "maxPace":
		s, err := asString(value)
		if err != nil {
			return fmt.Errorf("movement.%s: %w", field, err)
		}
		p.Movement.MaxPaceLabel = s
	case "paceTable":
		var table []PaceRate
		if err := reencode(value, &table); err != nil {
			return fmt.Errorf("movement.%s: %w", field, err)
		}
		p.Movement.PaceTable = table
	default:
		return fmt.Errorf("unknown movement field %q", field)
	}
	return nil
}
