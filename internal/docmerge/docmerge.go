// Package docmerge implements the includes-then-deep-merge definition
// file loader spec.md §4.2 describes for both device definition files and
// the cruise definition file: "includes: a string or list of glob specs
// to be loaded and deep-merged before the containing file." It is shared
// by internal/devices and internal/config so the two definition-file
// formats -- different top-level schemas, same merge discipline -- don't
// carry two copies of the same glob/merge logic.
package docmerge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v2"
)

// Doc is a generic parsed definition file: a mapping of string keys to
// arbitrary nested values.
type Doc map[string]interface{}

// Load reads one definition file (YAML or JSON, both parse with
// yaml.Unmarshal) into a Doc, resolves its "includes" key recursively,
// and deep-merges the included content underneath this file's own keys.
func Load(path string) (Doc, error) {
	return loadFile(path, map[string]bool{})
}

func loadFile(path string, visited map[string]bool) (Doc, error) {
	if visited[path] {
		return Doc{}, nil
	}
	visited[path] = true

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docmerge: reading %s: %w", path, err)
	}

	var parsed interface{}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("docmerge: parsing %s: %w", path, err)
	}

	normalized, ok := Normalize(parsed).(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("docmerge: %s: top level must be a mapping", path)
	}
	d := Doc(normalized)

	merged := Doc{}
	if includeSpec, ok := d["includes"]; ok {
		includePaths, err := resolveIncludePaths(includeSpec, filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("docmerge: %s: %w", path, err)
		}
		for _, incPath := range includePaths {
			incDoc, err := loadFile(incPath, visited)
			if err != nil {
				return nil, err
			}
			merged = Merge(merged, incDoc)
		}
	}

	delete(d, "includes")
	merged = Merge(merged, d)
	return merged, nil
}

// ResolveGlobs turns a spec value (a single glob string, or a list of glob
// strings) into a sorted, glob-expanded list of paths, resolved relative to
// baseDir when not already absolute. Exported for callers outside this
// package that need to expand a top-level path list the same way an
// "includes" key is expanded (e.g. internal/devices's Registry.Load).
func ResolveGlobs(spec interface{}, baseDir string) ([]string, error) {
	return resolveIncludePaths(spec, baseDir)
}

// resolveIncludePaths turns an "includes" value (a single glob string, or
// a list of glob strings) into a sorted, glob-expanded list of paths.
func resolveIncludePaths(spec interface{}, baseDir string) ([]string, error) {
	var patterns []string
	switch v := spec.(type) {
	case string:
		patterns = []string{v}
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("includes entries must be strings, got %T", item)
			}
			patterns = append(patterns, s)
		}
	default:
		return nil, fmt.Errorf("includes must be a string or list of strings, got %T", spec)
	}

	var paths []string
	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}

// Normalize recursively converts yaml.v2's map[interface{}]interface{}
// into map[string]interface{}, and []interface{} elements likewise, so
// callers only ever deal with one shape regardless of YAML vs JSON input.
func Normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[fmt.Sprintf("%v", k)] = Normalize(vv)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = Normalize(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = Normalize(vv)
		}
		return out
	default:
		return val
	}
}

// Merge merges src into dst per spec.md §4.2's rule: dict -> recursive,
// list -> append, scalar -> overwrite. dst is mutated and returned.
func Merge(dst, src map[string]interface{}) map[string]interface{} {
	for k, sv := range src {
		dv, exists := dst[k]
		if !exists {
			dst[k] = sv
			continue
		}
		dst[k] = mergeValue(dv, sv)
	}
	return dst
}

func mergeValue(dv, sv interface{}) interface{} {
	dm, dIsMap := dv.(map[string]interface{})
	sm, sIsMap := sv.(map[string]interface{})
	if dIsMap && sIsMap {
		return Merge(dm, sm)
	}

	dl, dIsList := dv.([]interface{})
	sl, sIsList := sv.([]interface{})
	if dIsList && sIsList {
		return append(append([]interface{}{}, dl...), sl...)
	}

	return sv
}
