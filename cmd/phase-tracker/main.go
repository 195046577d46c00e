package main

import (
	"os"
	"time"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/api"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/catalog"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/config"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/constants"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/logging"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/relay"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/replication"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	checkEnvVars([]string{constants.EnvSessionSecret})

	// Load the configuration file. Path may be provided via TRACKER_CONFIG
	// or defaults to ./tracker_config.json in the current working directory.
	configPath := os.Getenv(constants.EnvTrackerConfig)
	if configPath == "" {
		configPath = "./tracker_config.json"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logging.Fatal("Missing or invalid tracker configuration", err, logging.Fields{"config_path": configPath, "hint": "create a tracker_config.json with optional keys: server.address, catalog_override, defaults.phase_count, defaults.budget_per_slot, reminder_interval_seconds"})
	}

	registry := catalog.Load(cfg.CatalogOverridePath)
	logging.Info("action catalog loaded", logging.Fields{constants.LogFieldSource: string(registry.Source()), "actions": len(registry.Actions())})

	// Allow the DB path to be configured via TRACKER_DB. Default to a
	// `data/` directory inside the module for local development.
	dbPath := os.Getenv(constants.EnvTrackerDB)
	if dbPath == "" {
		dbPath = "./data/tracker.db"
	}
	db, err := storage.OpenAndMigrate(dbPath)
	if err != nil {
		logging.Fatal("Failed to initialize database", err, nil)
	}

	repo := storage.NewSQLiteRepository(db)
	holder := replication.NewHolder(repo)
	hub := relay.NewHub(holder)
	handler := api.NewCombatHandler(repo, registry, holder, hub, cfg.DefaultPhaseCount, cfg.DefaultBudgetPerSlot)

	// Background scanner: periodically surface due mental-focus and
	// endurance reminders for active combats. Reminders stay due until a
	// client acknowledges them by writing the ack-round path.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.ReminderIntervalSeconds) * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			combats, err := repo.GetActiveCombats()
			if err != nil {
				logging.Error("reminder scanner failed", err, nil)
				continue
			}
			for i := range combats {
				for _, rem := range combats[i].DueReminders() {
					logging.Info("reminder due", logging.Fields{
						constants.LogFieldCombatID:  combats[i].ID,
						constants.LogFieldCombatant: rem.CombatantUUID,
						constants.LogFieldRound:     rem.Round,
						"kind":                      rem.Kind,
					})
				}
			}
		}
	}()

	router := gin.Default()

	apiRoutes := router.Group(constants.RouteAPIPrefix)
	{
		// Public endpoints
		apiRoutes.GET(constants.RouteVersion, api.Version)
		apiRoutes.GET(constants.RouteCatalog, handler.ListCatalog)
		apiRoutes.POST(constants.RouteCombats, handler.CreateCombat)
		apiRoutes.POST(constants.RouteCombatsJoin, handler.JoinCombat)

		// Authenticated endpoints
		protected := apiRoutes.Group("")
		protected.Use(api.AuthRequired())

		protected.GET(constants.RouteCombatByCode, handler.GetCombat)
		protected.POST(constants.RouteCombatEnd, handler.EndCombat)
		protected.POST(constants.RouteCombatAdvance, handler.AdvanceTurn)
		protected.GET(constants.RouteCombatantPlan, handler.GetPlanView)
		protected.POST(constants.RouteCombatantPlan, handler.UpdatePlan)
		protected.POST(constants.RouteCombatantFlags, handler.ToggleFlag)
		protected.POST(constants.RouteCombatantMove, handler.Move)
		protected.GET(constants.RouteCombatWS, handler.ServeWS)
	}

	addr := cfg.ServerAddress
	logging.Info("Server started", logging.Fields{constants.LogFieldAddr: addr})
	if err := router.Run(addr); err != nil {
		logging.Fatal("Failed to start server", err, nil)
	}
}

func checkEnvVars(vars []string) {
	for _, v := range vars {
		if os.Getenv(v) == "" {
			logging.Fatal("Required environment variable not set", nil, logging.Fields{"var": v})
		}
	}
}
