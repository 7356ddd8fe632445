package devices

import (
	"fmt"

	"rvdas-go/internal/docmerge"
)

// doc is this package's alias for docmerge.Doc, kept so the rest of the
// package doesn't need to import docmerge directly for the common case.
type doc = docmerge.Doc

// loadFile reads one device/device-type definition file (YAML or JSON),
// resolving "includes" and deep-merging per spec.md §4.2, via the shared
// internal/docmerge loader.
func loadFile(path string, visited map[string]bool) (doc, error) {
	// visited is accepted for call-site compatibility with the previous
	// local implementation; docmerge.Load tracks its own visited set
	// internally per top-level Load call.
	_ = visited
	d, err := docmerge.Load(path)
	if err != nil {
		return nil, fmt.Errorf("devices: %w", err)
	}
	return d, nil
}

// resolveIncludePaths is re-exported for device_registry.go's top-level
// path-list expansion (distinct from the "includes" key inside a file).
func resolveIncludePaths(spec interface{}, baseDir string) ([]string, error) {
	return docmerge.ResolveGlobs(spec, baseDir)
}

// deepMerge is re-exported for device_registry.go's cross-file merge of
// the registry's top-level path list.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	return docmerge.Merge(dst, src)
}
