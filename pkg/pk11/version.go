package pk11

var (
	Version   = "v0.0.0-in-progress"
	GitCommit = "unknown"
)

// WrapperVersion returns the semantic version populated at build time via
// ldflags. In development it defaults to v0.0.0-in-progress.
func WrapperVersion() string {
	return Version
}

// BuildInfo returns the wrapper version, commit and active engine in one
// line, as printed by the command line tool.
func BuildInfo() string {
	return Version + " (" + GitCommit + ") engine=" + EngineName()
}
