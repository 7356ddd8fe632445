package transform

import (
	"math"

	"rvdas-go/pkg/record"
)

// DeltaTransform emits, per field, the change since that field's previous
// observation -- a plain difference for linear fields, or the signed
// minimal angle for polar fields -- optionally divided by elapsed time to
// yield a rate (spec.md §4.4 "DeltaTransform").
type DeltaTransform struct {
	PolarFields map[string]bool // fields using polar_diff instead of linear difference
	AsRate      bool

	last map[string]timedValue
}

func NewDeltaTransform(polarFields map[string]bool, asRate bool) *DeltaTransform {
	return &DeltaTransform{PolarFields: polarFields, AsRate: asRate, last: map[string]timedValue{}}
}

func (d *DeltaTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}

	out := map[string]record.Value{}
	for name, val := range rec.Fields {
		f, ok := asFloat(val)
		if !ok {
			continue
		}
		prev, seen := d.last[name]
		d.last[name] = timedValue{ts: rec.Timestamp, val: f}
		if !seen {
			out[name] = nil
			continue
		}

		var delta float64
		if d.PolarFields[name] {
			delta = polarDiff(prev.val, f)
		} else {
			delta = f - prev.val
		}
		if d.AsRate {
			dt := rec.Timestamp - prev.ts
			if dt != 0 {
				delta /= dt
			}
		}
		out[name] = delta
	}

	return single(record.New(rec.Timestamp, out))
}

// polarDiff returns the signed minimal angle from `last` to `now`, in
// [-180, 180), via ((delta + 180) mod 360) - 180.
func polarDiff(last, now float64) float64 {
	delta := now - last
	r := math.Mod(delta+180, 360)
	if r < 0 {
		r += 360
	}
	return r - 180
}
