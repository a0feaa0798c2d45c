package modulebase

import "sync"

// Factory builds a fresh Handler instance. Built-in modules register
// a Factory at package init time via RegisterBuiltin; dynamically
// loaded modules are built from the "NewModule" symbol in their
// plugin object instead (see discovery.go).
type Factory func() Handler

var (
	builtinMu    sync.Mutex
	builtinTable = make(map[string]Factory)
)

// RegisterBuiltin registers a compiled-in module factory under name.
// Called from a module package's init() function, so a subset of
// modules can be statically linked directly into the daemon binary
// instead of loaded as separate .so files.
func RegisterBuiltin(name string, factory Factory) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	builtinTable[name] = factory
}

// lookupBuiltin returns the factory registered under name, if any.
func lookupBuiltin(name string) (Factory, bool) {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	f, ok := builtinTable[name]
	return f, ok
}

// ListBuiltins returns the names of every registered built-in module,
// for diagnostics.
func ListBuiltins() []string {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	names := make([]string, 0, len(builtinTable))
	for name := range builtinTable {
		names = append(names, name)
	}
	return names
}
