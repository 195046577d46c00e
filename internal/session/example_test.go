package session_test

import (
	"fmt"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/catalog"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/replication"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/session"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/tracker"
)

// ExampleSession shows the host-integration wiring: the host maps its own
// events onto the session's transitions, and Send carries the staged writes
// to whatever transport reaches the relay.
func ExampleSession() {
	plan := tracker.NewCombatantPlan("u1", "Karsa", "sub1")
	combat := &tracker.Combat{
		JoinCode:      "AAAA1111",
		Status:        tracker.StatusActive,
		Round:         1,
		Phase:         1,
		PhaseCount:    4,
		BudgetPerSlot: 1,
		Plans:         []tracker.CombatantPlan{*plan},
	}

	s := session.New(session.Config{
		CombatID: "AAAA1111",
		Identity: session.Identity{Sub: "sub1", ObserverID: "obs1"},
		Registry: catalog.Defaults(),
		// A real host forwards each envelope over its websocket connection
		// and feeds replies back through OnRemoteUpdate.
		Send:     func(env replication.Envelope) { fmt.Println(env.Path) },
		Snapshot: combat,
		Enforce:  true,
	})

	slot := tracker.SlotKey{Round: 1, Slot: 1, Kind: tracker.SlotMain}
	if err := s.OnPlanEdit("u1", slot, catalog.MoveActionKey, false); err != nil {
		fmt.Println("edit rejected:", err)
	}
	// Output:
	// combatants.u1.planActions.r1p1
	// combatants.u1.planAuto.r1p1
	// combatants.u1.planCosts.r1p1
	// combatants.u1.finishEarly.r1p1
}
