package logger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []Entry
}

func (s *recordingSink) Write(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}
func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition never became true")
}

func TestLoggerDeliversEntryToSink(t *testing.T) {
	sink := &recordingSink{}
	l := New(sink, NewRuleSet(), Debug)
	l.Start()
	defer l.Stop()

	l.Log(Info, "main.go", "Run", "hello %s", "world")

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
	entries := sink.snapshot()
	assert.Equal(t, "hello world", entries[0].Text)
	assert.Equal(t, Info, entries[0].Priority)
}

func TestLoggerDropsBelowVerbosity(t *testing.T) {
	sink := &recordingSink{}
	l := New(sink, NewRuleSet(), Warning)
	l.Start()
	defer l.Stop()

	l.Log(Debug, "main.go", "Run", "should not appear")
	l.Log(Err, "main.go", "Run", "should appear")

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
	assert.Equal(t, "should appear", sink.snapshot()[0].Text)
}

func TestLoggerHonorsExcludeRule(t *testing.T) {
	rules := NewRuleSet()
	rules.AddExclude("noisy.go:*")

	sink := &recordingSink{}
	l := New(sink, rules, Debug)
	l.Start()
	defer l.Stop()

	l.Log(Info, "noisy.go", "Spam", "dropped")
	l.Log(Info, "quiet.go", "Run", "kept")

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
	assert.Equal(t, "kept", sink.snapshot()[0].Text)
}

func TestRuleSetMostRecentRuleWins(t *testing.T) {
	rules := NewRuleSet()
	rules.AddExclude("a.go:*")
	assert.False(t, rules.Allows("a.go:F"))

	rules.AddInclude("a.go:*")
	assert.True(t, rules.Allows("a.go:F"))
}

func TestRuleSetResolveDistinguishesNoMatchFromInclude(t *testing.T) {
	rules := NewRuleSet()
	assert.Equal(t, Unmatched, rules.Resolve("anything.go:F"))

	rules.AddInclude("a.go:*")
	assert.Equal(t, Included, rules.Resolve("a.go:F"))
	assert.Equal(t, Unmatched, rules.Resolve("b.go:F"))

	rules.AddExclude("a.go:*")
	assert.Equal(t, Excluded, rules.Resolve("a.go:F"))
}

func TestLoggerIncludeRuleForcesLogRegardlessOfVerbosity(t *testing.T) {
	rules := NewRuleSet()
	rules.AddInclude("noisy.go:*")

	sink := &recordingSink{}
	l := New(sink, rules, Warning)
	l.Start()
	defer l.Stop()

	l.Log(Debug, "noisy.go", "Spam", "forced through")
	l.Log(Debug, "quiet.go", "Run", "should be dropped by verbosity")

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
	assert.Equal(t, "forced through", sink.snapshot()[0].Text)
}

func TestLoggerExcludeRuleDropsRegardlessOfVerbosity(t *testing.T) {
	rules := NewRuleSet()
	rules.AddExclude("noisy.go:*")

	sink := &recordingSink{}
	l := New(sink, rules, Debug)
	l.Start()
	defer l.Stop()

	l.Log(Emerg, "noisy.go", "Spam", "dropped even at emerg")
	l.Log(Debug, "quiet.go", "Run", "kept")

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
	assert.Equal(t, "kept", sink.snapshot()[0].Text)
}

func TestLoggerClampsOutOfRangePriority(t *testing.T) {
	sink := &recordingSink{}
	l := New(sink, NewRuleSet(), Emerg)
	l.Start()
	defer l.Stop()

	l.Log(Priority(-5), "main.go", "Run", "too severe")

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 })
	assert.Equal(t, Emerg, sink.snapshot()[0].Priority)
}

func TestRingPushRefusesEntryWhenFull(t *testing.T) {
	var r ring
	for i := 0; i < ringCapacity; i++ {
		require.True(t, r.push(Entry{Text: "x"}))
	}
	assert.False(t, r.push(Entry{Text: "overflow"}))
}

func TestRingRecoversFromOverflowOnce(t *testing.T) {
	var r ring
	for i := 0; i < ringCapacity; i++ {
		r.push(Entry{Text: "x"})
	}
	r.lost.Add(3)

	for i := 0; i < ringCapacity; i++ {
		r.pop()
	}

	n, ok := r.recoveredFromOverflow()
	require.True(t, ok)
	assert.Equal(t, uint64(3), n)

	_, ok = r.recoveredFromOverflow()
	assert.False(t, ok)
}

func TestLoggerDegradesToSynchronousWriteAfterConsumerPanic(t *testing.T) {
	sink := &recordingSink{}
	l := New(sink, NewRuleSet(), Debug)
	l.Start()
	defer l.Stop()

	l.degraded.Store(true)
	l.Log(Crit, "x.go", "F", "written synchronously")

	assert.Len(t, sink.snapshot(), 1)
}
