package version

// Build metadata injected via -ldflags. Defaults cover local development
// builds that skip injection.
var (
	Version = "dev"
	Commit  = "none"
	Date    = ""
	Dirty   = "false"
)
