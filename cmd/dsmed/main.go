// Command dsmed is the device state management daemon: a single
// cooperative event loop coordinating loaded plugin modules, a
// client socket, and a heartbeat watchdog contract.
package main

import (
	"fmt"
	"os"

	"github.com/dsmed/dsmed/internal/daemon"
	"github.com/dsmed/dsmed/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		startupModules []string
		loggingMethod  string
		logFilePath    string
		verbosity      int
		logIncludes    []string
		logExcludes    []string
		socketPath     string
		systemd        bool
	)

	root := &cobra.Command{
		Use:   "dsmed",
		Short: "Device state management daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(startupModules) == 0 {
				return fmt.Errorf("at least one -p/--startup-module is required")
			}

			opts := daemon.Options{
				LoggingMethod: logger.Method(loggingMethod),
				LogFilePath:   logFilePath,
				Verbosity:     logger.Priority(verbosity),
				LogIncludes:   logIncludes,
				LogExcludes:   logExcludes,
				SocketPath:    socketPath,
				Systemd:       systemd,
			}
			for _, name := range startupModules {
				opts.StartupModules = append(opts.StartupModules, daemon.ModuleSpec{Name: name})
			}

			exitCode = daemon.New(opts).Run()
			return nil
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.StringArrayVarP(&startupModules, "startup-module", "p", nil,
		"module to load at startup, in load order (repeatable, required)")
	flags.StringVarP(&loggingMethod, "logging", "l", "none",
		"logging method: none|stderr|syslog|file")
	flags.StringVar(&logFilePath, "log-file", "", "path to the log file when --logging=file")
	flags.IntVarP(&verbosity, "verbosity", "v", int(logger.Warning),
		"initial log verbosity threshold (0-7)")
	flags.StringArrayVarP(&logIncludes, "log-include", "i", nil,
		"file:func glob include rule (repeatable)")
	flags.StringArrayVarP(&logExcludes, "log-exclude", "e", nil,
		"file:func glob exclude rule (repeatable)")
	flags.StringVar(&socketPath, "socket", "", "client socket path override")
	flags.BoolVarP(&systemd, "systemd", "s", false,
		"signal the parent process once the listen socket is up")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

// exitCode is set by the RunE closure above; cobra's Execute doesn't
// give RunE a way to hand back a process exit code directly.
var exitCode int
