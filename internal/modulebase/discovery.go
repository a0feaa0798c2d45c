package modulebase

import (
	"fmt"
	"path/filepath"
	"plugin"
)

// dynamicSymbol is the name a module built with `go build
// -buildmode=plugin` must export: a niladic function returning a
// fresh Handler. plugin.Open performs the dynamic load, and Lookup
// performs the symbol resolution, the Go-native equivalent of a
// dlopen + symbol lookup pair.
const dynamicSymbol = "NewModule"

// loadDynamic opens the plugin object at path and instantiates its
// Handler. If path is not absolute, "./" is prepended first, so a bare
// filename resolves relative to the current working directory.
func loadDynamic(path string) (Handler, error) {
	if !filepath.IsAbs(path) {
		path = "./" + path
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("modulebase: opening %s: %w", path, err)
	}

	sym, err := p.Lookup(dynamicSymbol)
	if err != nil {
		return nil, fmt.Errorf("modulebase: %s does not export %s: %w", path, dynamicSymbol, err)
	}

	factory, ok := sym.(func() Handler)
	if !ok {
		return nil, fmt.Errorf("modulebase: %s's %s has the wrong signature", path, dynamicSymbol)
	}

	return factory(), nil
}
