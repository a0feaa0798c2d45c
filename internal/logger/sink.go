package logger

import (
	"bufio"
	"fmt"
	"io"
	"log/syslog"
	"os"
)

// Sink is anything the logger can hand a formatted Entry to. Sinks
// are synchronous: Write is only ever called from the one auxiliary
// logger goroutine (or, in the degraded path, from the producer
// itself), never concurrently.
type Sink interface {
	Write(e Entry) error
	Close() error
}

// Method names the logging method, matching the -l/--logging flag's
// accepted values.
type Method string

const (
	MethodNone   Method = "none"
	MethodStderr Method = "stderr"
	MethodSyslog Method = "syslog"
	MethodFile   Method = "file"
)

// NewSink constructs the Sink for the given method. path is only
// consulted for MethodFile.
func NewSink(method Method, path string) (Sink, error) {
	switch method {
	case MethodNone, "":
		return nullSink{}, nil
	case MethodStderr:
		return newStreamSink(os.Stderr, false), nil
	case MethodFile:
		if path == "" {
			return nil, fmt.Errorf("logger: file sink requires a path")
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("logger: opening log file %q: %w", path, err)
		}
		return newStreamSink(f, true), nil
	case MethodSyslog:
		w, err := syslog.New(syslog.LOG_DAEMON, "dsmed")
		if err != nil {
			return nil, fmt.Errorf("logger: connecting to syslog: %w", err)
		}
		return syslogSink{w: w}, nil
	default:
		return nil, fmt.Errorf("logger: unknown logging method %q", method)
	}
}

// nullSink discards everything, used for -l none.
type nullSink struct{}

func (nullSink) Write(Entry) error { return nil }
func (nullSink) Close() error      { return nil }

// streamSink writes the daemon's native line format directly to a
// file or stderr:
//
//	dsme <PRIORITY>: <file>: <func>(): <text>
//
// This format is a fixed legacy wire shape shared with log readers
// that predate this rewrite, so it is produced directly rather than
// through a general-purpose structured-logging formatter; the
// daemon's own operational diagnostics (startup, shutdown, plugin
// load/unload) go through zerolog instead, in internal/daemon.
type streamSink struct {
	w      io.Writer
	closer io.Closer
}

func newStreamSink(w io.WriteCloser, ownsClose bool) *streamSink {
	if ownsClose {
		return &streamSink{w: bufio.NewWriter(w), closer: w}
	}
	return &streamSink{w: w}
}

func (s *streamSink) Write(e Entry) error {
	_, err := fmt.Fprintf(s.w, "dsme %s: %s: %s(): %s\n", e.Priority, e.File, e.Func, e.Text)
	if bw, ok := s.w.(*bufio.Writer); ok {
		if flushErr := bw.Flush(); err == nil {
			err = flushErr
		}
	}
	return err
}

func (s *streamSink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// syslogSink hands entries to the system syslog daemon, mapping
// Priority onto the matching syslog severity call. There is no
// widely-used third-party syslog client across the example pack, so
// this sink is built directly on the standard library's log/syslog,
// which already implements the client protocol correctly.
type syslogSink struct {
	w *syslog.Writer
}

func (s syslogSink) Write(e Entry) error {
	line := fmt.Sprintf("%s: %s(): %s", e.File, e.Func, e.Text)
	switch e.Priority {
	case Emerg:
		return s.w.Emerg(line)
	case Alert:
		return s.w.Alert(line)
	case Crit:
		return s.w.Crit(line)
	case Err:
		return s.w.Err(line)
	case Warning:
		return s.w.Warning(line)
	case Notice:
		return s.w.Notice(line)
	case Info:
		return s.w.Info(line)
	default:
		return s.w.Debug(line)
	}
}

func (s syslogSink) Close() error {
	return s.w.Close()
}
