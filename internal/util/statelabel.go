package util

// State is a coarse device state, used only for human-readable
// logging; the daemon core itself does not branch on these values
// (the state machine that assigns real meaning to them is plugin
// policy, out of scope here).
type State int

const (
	StateUnknown State = iota
	StateShutdown
	StateUserActive
	StateActDead
	StateReboot
	StateBootup
)

var stateLabels = map[State]string{
	StateUnknown:    "UNKNOWN",
	StateShutdown:   "SHUTDOWN",
	StateUserActive: "USER",
	StateActDead:    "ACTDEAD",
	StateReboot:     "REBOOT",
	StateBootup:     "BOOT",
}

// Label returns the human-readable name for s, or "UNKNOWN" for any
// value not in the table.
func Label(s State) string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return "UNKNOWN"
}
