// Package transform implements the Transform family of spec.md §4.4: each
// transform maps one Record to zero, one, or many Records. ApplyAll gives
// every transform list- and nil-handling uniformly, mirroring the Python
// base Transform's can_process/digest pattern (digest.py /
// transforms/transform.py in the original implementation).
package transform

import (
	"rvdas-go/pkg/record"
)

// Transform is implemented by every member of the transform family.
// Apply may return nil (drop), a single-element slice, or several
// elements (fan-out).
type Transform interface {
	Apply(rec *record.Record) []*record.Record
}

// ApplyAll runs t against every record in recs and concatenates the
// (possibly empty) results, in order -- the framework-level helper that
// lets a pipeline Node treat "did I get a list or a single record"
// uniformly.
func ApplyAll(t Transform, recs []*record.Record) []*record.Record {
	var out []*record.Record
	for _, rec := range recs {
		out = append(out, t.Apply(rec)...)
	}
	return out
}

// single is a convenience for transforms that always produce at most one
// record.
func single(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	return []*record.Record{rec}
}
