package movement

// Pace is a movement rate classification tier.
type Pace string

const (
	PaceCreep  Pace = "Creep"
	PaceWalk   Pace = "Walk"
	PaceJog    Pace = "Jog"
	PaceRun    Pace = "Run"
	PaceSprint Pace = "Sprint"
	PaceDash   Pace = "Dash"
)

// paceOrder lists tiers slowest first.
var paceOrder = []Pace{PaceCreep, PaceWalk, PaceJog, PaceRun, PaceSprint, PaceDash}

// roundMultipliers are the per-round distance bands: a round total of up to
// multiplier×BMR classifies as that pace.
var roundMultipliers = map[Pace]float64{
	PaceCreep:  0.5,
	PaceWalk:   1,
	PaceJog:    2,
	PaceRun:    3,
	PaceSprint: 4,
	PaceDash:   5,
}

// incidentalTier describes one tier of the incidental-movement table: the
// fraction of effective BMR it permits and the game-rule penalty attached.
type incidentalTier struct {
	pace     Pace
	fraction float64
	penalty  float64
}

var incidentalTiers = []incidentalTier{
	{PaceCreep, 1.0 / 8.0, 0},
	{PaceWalk, 1.0 / 4.0, -25},
	{PaceJog, 1.0 / 2.0, -50},
	{PaceRun, 3.0 / 4.0, -75},
}

// paceIndex returns the position of p in slowest-first order, or -1.
func paceIndex(p Pace) int {
	for i, q := range paceOrder {
		if q == p {
			return i
		}
	}
	return -1
}

// slowerOf returns whichever of two paces is the slower tier.
func slowerOf(a, b Pace) Pace {
	if paceIndex(a) <= paceIndex(b) {
		return a
	}
	return b
}

// RoundMultiplier returns the round-cap multiplier for a pace.
func RoundMultiplier(p Pace) float64 {
	if m, ok := roundMultipliers[p]; ok {
		return m
	}
	return roundMultipliers[PaceSprint]
}

// classifyRound picks the slowest band that accommodates a round total, not
// exceeding the cap pace.
func classifyRound(total, bmr float64, capPace Pace) Pace {
	capIdx := paceIndex(capPace)
	if capIdx < 0 {
		capIdx = paceIndex(PaceSprint)
	}
	for i, p := range paceOrder {
		if i > capIdx {
			break
		}
		if total <= roundMultipliers[p]*bmr+distanceEpsilon {
			return p
		}
	}
	return paceOrder[capIdx]
}

// classifyIncidental picks the slowest incidental tier whose threshold
// accommodates the distance, not exceeding the cap tier.
func classifyIncidental(total, effBMR float64, capTier Pace) (Pace, float64) {
	capIdx := paceIndex(capTier)
	last := incidentalTiers[0]
	for _, t := range incidentalTiers {
		if paceIndex(t.pace) > capIdx {
			break
		}
		last = t
		if total <= t.fraction*effBMR+distanceEpsilon {
			return t.pace, t.penalty
		}
	}
	return last.pace, last.penalty
}

// incidentalCap returns the permitted incidental distance for a cap tier.
func incidentalCap(effBMR float64, capTier Pace) float64 {
	capIdx := paceIndex(capTier)
	cap := incidentalTiers[0].fraction * effBMR
	for _, t := range incidentalTiers {
		if paceIndex(t.pace) > capIdx {
			break
		}
		cap = t.fraction * effBMR
	}
	return cap
}
