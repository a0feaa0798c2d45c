package logger

import (
	"path"
	"sync"
)

// action is whether a matching rule includes or excludes its site.
type action int

const (
	actionExclude action = iota
	actionInclude
)

// Verdict is the three-way result of resolving a call site against
// the rule set: an include rule forces logging regardless of
// verbosity, an exclude rule forces a drop regardless of verbosity,
// and no match at all defers the decision to the verbosity threshold.
type Verdict int

const (
	Unmatched Verdict = iota
	Included
	Excluded
)

// rule is one glob pattern over "file:func" plus the action it
// carries.
type rule struct {
	pattern string
	act     action
}

// RuleSet holds the ordered include/exclude rules that gate which
// "file:func" call sites are allowed to produce output at a given
// verbosity, plus a resolved-state cache so repeated log calls from
// the same site don't re-walk the rule list.
//
// Rules are stored most-recently-added first: matching walks from the
// front, so the newest rule that matches a given site always wins,
// regardless of whether it was added as an include or an exclude.
// This mirrors "last rule added wins" semantics using a simple
// prepend + first-match-wins walk.
type RuleSet struct {
	mu    sync.Mutex
	rules []rule
	cache map[string]Verdict
}

// NewRuleSet returns a RuleSet with no rules: every site resolves as
// Unmatched until narrowed by AddInclude/AddExclude.
func NewRuleSet() *RuleSet {
	return &RuleSet{cache: make(map[string]Verdict)}
}

// AddInclude adds a "file:func" glob include rule, taking precedence
// over every rule added before it.
func (rs *RuleSet) AddInclude(pattern string) {
	rs.add(rule{pattern: pattern, act: actionInclude})
}

// AddExclude adds a "file:func" glob exclude rule, taking precedence
// over every rule added before it.
func (rs *RuleSet) AddExclude(pattern string) {
	rs.add(rule{pattern: pattern, act: actionExclude})
}

func (rs *RuleSet) add(r rule) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rules = append([]rule{r}, rs.rules...)
	rs.cache = make(map[string]Verdict)
}

// UseDefaults clears every include/exclude rule added so far,
// reverting every site to Unmatched. Matches the wire operation of
// the same name.
func (rs *RuleSet) UseDefaults() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.rules = nil
	rs.cache = make(map[string]Verdict)
}

// Resolve reports whether the given "file:func" site is forced
// included, forced excluded, or left unmatched by every rule added so
// far, consulting the resolved-state cache first and falling back to
// a full rule walk (most-recent rule first) on a cache miss. An
// unmatched site defers to the caller's own default (in practice, the
// verbosity threshold).
func (rs *RuleSet) Resolve(site string) Verdict {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if v, ok := rs.cache[site]; ok {
		return v
	}

	v := Unmatched
	for _, r := range rs.rules {
		if globMatch(r.pattern, site) {
			if r.act == actionInclude {
				v = Included
			} else {
				v = Excluded
			}
			break
		}
	}
	rs.cache[site] = v
	return v
}

// Allows reports whether the given "file:func" site is permitted to
// log at every priority: an include rule always allows, an exclude
// rule always denies, and an unmatched site allows (matching the
// daemon's default of logging everything until narrowed). Callers
// that need the verbosity threshold consulted on an unmatched site
// should use Resolve directly instead.
func (rs *RuleSet) Allows(site string) bool {
	return rs.Resolve(site) != Excluded
}

// globMatch reports whether pattern matches site using shell glob
// semantics (path.Match). Rules are written against the whole
// "file:func" string rather than two separate glob fields; path.Match's
// "*" already matches across the ':' separator, but not across '/'.
func globMatch(pattern, site string) bool {
	ok, err := path.Match(pattern, site)
	if err != nil {
		return false
	}
	return ok
}
