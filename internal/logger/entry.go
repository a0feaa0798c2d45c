// Package logger implements the daemon's own asynchronous logging
// facility: a lock-free single-producer/single-consumer ring buffer
// feeding one auxiliary logger goroutine, glob-based include/exclude
// rules gating which call sites actually produce output, and a set of
// sinks (none, stderr, syslog, file) built on the standard library.
package logger

import "time"

// Priority mirrors the syslog severity levels the original
// implementation logs against (LOG_EMERG .. LOG_DEBUG).
type Priority int

const (
	Emerg Priority = iota
	Alert
	Crit
	Err
	Warning
	Notice
	Info
	Debug
)

// Clamp restricts p into the valid Emerg..Debug range, matching
// log_prio_cap's treatment of out-of-range priority values.
func (p Priority) Clamp() Priority {
	switch {
	case p < Emerg:
		return Emerg
	case p > Debug:
		return Debug
	default:
		return p
	}
}

func (p Priority) String() string {
	switch p {
	case Emerg:
		return "EMERG"
	case Alert:
		return "ALERT"
	case Crit:
		return "CRIT"
	case Err:
		return "ERR"
	case Warning:
		return "WARNING"
	case Notice:
		return "NOTICE"
	case Info:
		return "INFO"
	case Debug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Entry is one log record as it travels through the ring buffer from
// producer to consumer.
type Entry struct {
	Time     time.Time
	Priority Priority
	File     string
	Func     string
	Text     string
}

// site returns the "file:func" key used both for rule matching and
// for the resolved-state cache.
func (e Entry) site() string {
	return e.File + ":" + e.Func
}
