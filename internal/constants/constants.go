package constants

// Centralized constants for env keys, routes, headers and error messages.
const (
	// Environment variable keys
	EnvSessionSecret       = "SESSION_SECRET"
	EnvTrackerConfig       = "TRACKER_CONFIG"
	EnvTrackerDB           = "TRACKER_DB"
	EnvSessionSecureCookie = "SESSION_SECURE_COOKIE"

	// HTTP headers and content types
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"

	ContentTypeJSON = "application/json"

	// Authorization prefix
	BearerPrefix = "Bearer "

	// Session / Cookie names
	CookieSessionName = "pt_session"
)

// Routes used by the backend router
const (
	RouteAPIPrefix      = "/api"
	RouteVersion        = "/version"
	RouteCatalog        = "/catalog"
	RouteCombats        = "/combats"
	RouteCombatsJoin    = "/combats/join"
	RouteCombatByCode   = "/combats/:combatCode"
	RouteCombatEnd      = "/combats/:combatCode/end"
	RouteCombatAdvance  = "/combats/:combatCode/advance"
	RouteCombatants     = "/combats/:combatCode/combatants"
	RouteCombatantPlan  = "/combats/:combatCode/combatants/:combatantID/plan"
	RouteCombatantFlags = "/combats/:combatCode/combatants/:combatantID/flags"
	RouteCombatantMove  = "/combats/:combatCode/combatants/:combatantID/move"
	RouteCombatWS       = "/ws/:combatCode"
)

// Common JSON response keys
const (
	JSONKeyError   = "error"
	JSONKeyMessage = "message"
	JSONKeyWarning = "warning"
)

// Common error messages used across API handlers
const (
	ErrInvalidRequest     = "Invalid request"
	ErrInvalidCombatCode  = "Invalid combat code"
	ErrCombatNotFound     = "Combat not found"
	ErrCombatEnded        = "Combat has ended"
	ErrCombatFull         = "Combat is full"
	ErrFailedCreateCombat = "Failed to create combat"
	ErrFailedUpdateCombat = "Failed to update combat"
	ErrFailedFetchCombat  = "Failed to fetch combat"
	ErrFailedEncodePlan   = "Failed to encode plan"
	ErrFailedCreateToken  = "Failed to create session"

	ErrAuthRequired       = "Authentication required"
	ErrInvalidSession     = "Invalid session"
	ErrGameMasterOnly     = "Only the game master may do this"
	ErrNotYourCombatant   = "You do not control this combatant"
	ErrCombatantNotFound  = "Combatant not found"
	ErrInvalidSlotKey     = "Invalid slot key"
	ErrTooManyFlags       = "At most two concentration flags may be active"
	ErrSlotGroupNotBlank  = "Clear the current phase selections before enabling a flag"
	ErrFinishEarlyNotNow  = "Finish-early may only be toggled on the current slot"
	ErrUnknownFlag        = "Unknown concentration flag"
	ErrMissingMoveNumbers = "Movement enforcement skipped: missing movement stats"
)

// Logging field names
const (
	LogFieldCombatID  = "combat_id"
	LogFieldCombatant = "combatant_id"
	LogFieldPath      = "path"
	LogFieldRound     = "round"
	LogFieldPhase     = "phase"
	LogFieldObserver  = "observer"
	LogFieldAddr      = "addr"
	LogFieldSource    = "source"
)
