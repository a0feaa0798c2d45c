package daemon

import "github.com/dsmed/dsmed/internal/logger"

// ModuleSpec names one module to load at startup, matching the
// repeatable -p/--startup-module flag: modules are loaded in the order
// they're given, and that same order becomes their delivery priority.
type ModuleSpec struct {
	Name string
}

// Options collects everything cmd/dsmed's CLI surface can configure.
type Options struct {
	StartupModules []ModuleSpec

	LoggingMethod logger.Method
	LogFilePath   string
	Verbosity     logger.Priority
	LogIncludes   []string
	LogExcludes   []string

	SocketPath string
	Systemd    bool
}
