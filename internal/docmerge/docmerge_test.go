package docmerge

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoadResolvesIncludesAndDeepMerges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "devices:\n  a:\n    device_type: gyro\n")
	main := writeFile(t, dir, "main.yaml", "includes: base.yaml\ndevices:\n  b:\n    device_type: gps\n")

	d, err := Load(main)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	devices, ok := d["devices"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected devices mapping, got %T", d["devices"])
	}
	if _, ok := devices["a"]; !ok {
		t.Errorf("expected included device %q to be present", "a")
	}
	if _, ok := devices["b"]; !ok {
		t.Errorf("expected local device %q to be present", "b")
	}
	if _, ok := d["includes"]; ok {
		t.Errorf("includes key should be stripped from the merged result")
	}
}

func TestLoadExpandsGlobIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", "devices:\n  one:\n    device_type: t1\n")
	writeFile(t, dir, "two.yaml", "devices:\n  two:\n    device_type: t2\n")
	main := writeFile(t, dir, "main.yaml", "includes: \"*.yaml\"\n")

	d, err := Load(main)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	devices := d["devices"].(map[string]interface{})
	if len(devices) != 2 {
		t.Errorf("expected 2 devices from glob include, got %d: %v", len(devices), devices)
	}
}

func TestMergeListsAppendAndScalarsOverwrite(t *testing.T) {
	dst := map[string]interface{}{
		"list":   []interface{}{"a"},
		"scalar": "old",
		"nested": map[string]interface{}{"x": 1},
	}
	src := map[string]interface{}{
		"list":   []interface{}{"b"},
		"scalar": "new",
		"nested": map[string]interface{}{"y": 2},
	}

	out := Merge(dst, src)

	list := out["list"].([]interface{})
	if len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Errorf("expected appended list [a b], got %v", list)
	}
	if out["scalar"] != "new" {
		t.Errorf("expected scalar overwrite to \"new\", got %v", out["scalar"])
	}
	nested := out["nested"].(map[string]interface{})
	if nested["x"] != 1 || nested["y"] != 2 {
		t.Errorf("expected recursive dict merge, got %v", nested)
	}
}

func TestResolveGlobsRejectsNonStringSpec(t *testing.T) {
	if _, err := ResolveGlobs(42, "."); err == nil {
		t.Error("expected error for non-string/list includes spec")
	}
}
