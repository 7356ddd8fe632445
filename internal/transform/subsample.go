package transform

import (
	"rvdas-go/pkg/record"
)

// SubsampleTransform behaves like InterpolationTransform but emits per
// field on that field's own last-emitted-timestamp cadence rather than a
// shared global next_timestamp (spec.md §4.4 "Subsample").
type SubsampleTransform struct {
	Outputs  map[string]OutputSpec
	Interval float64
	Window   float64

	cache              map[string][]timedValue
	lastEmittedByField map[string]float64
}

func NewSubsampleTransform(outputs map[string]OutputSpec, interval, window float64) *SubsampleTransform {
	return &SubsampleTransform{
		Outputs:            outputs,
		Interval:           interval,
		Window:             window,
		cache:              map[string][]timedValue{},
		lastEmittedByField: map[string]float64{},
	}
}

func (s *SubsampleTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}

	for name, spec := range s.Outputs {
		val, ok := rec.Fields[spec.Source]
		if !ok {
			continue
		}
		f, ok := asFloat(val)
		if !ok {
			continue
		}
		s.cache[spec.Source] = append(s.cache[spec.Source], timedValue{ts: rec.Timestamp, val: f})
		_ = name
	}

	var out []*record.Record
	for name, spec := range s.Outputs {
		emissions := s.subsample(name, spec, rec.Timestamp)
		for _, tv := range emissions {
			out = append(out, record.New(tv.ts, map[string]record.Value{name: tv.val}))
		}
	}
	return out
}

// subsample returns every (ts, value) pair due for emission on outputName's
// cadence up to `now`, advancing its last-emitted watermark by Interval
// each time, and pruning cache entries older than the emission window.
func (s *SubsampleTransform) subsample(outputName string, spec OutputSpec, now float64) []timedValue {
	var emissions []timedValue
	last, ok := s.lastEmittedByField[outputName]
	if !ok {
		oldest, found := s.oldest(spec.Source)
		if !found {
			return nil
		}
		last = oldest
	}

	for next := last + s.Interval; next <= now-s.Window/2; next += s.Interval {
		val, ok := s.computeAt(spec, next)
		if ok {
			emissions = append(emissions, timedValue{ts: next, val: val})
		}
		last = next
		s.pruneBefore(spec.Source, next-s.Window/2)
	}
	s.lastEmittedByField[outputName] = last
	return emissions
}

func (s *SubsampleTransform) oldest(source string) (float64, bool) {
	tvs := s.cache[source]
	if len(tvs) == 0 {
		return 0, false
	}
	return tvs[0].ts, true
}

func (s *SubsampleTransform) pruneBefore(source string, cutoff float64) {
	tvs := s.cache[source]
	idx := 0
	for idx < len(tvs) && tvs[idx].ts < cutoff {
		idx++
	}
	s.cache[source] = tvs[idx:]
}

func (s *SubsampleTransform) computeAt(spec OutputSpec, t float64) (float64, bool) {
	tvs := s.cache[spec.Source]
	switch spec.Algorithm {
	case AlgoBoxcarAverage:
		return boxcarAverage(tvs, t, s.Window)
	case AlgoNearest:
		return nearest(tvs, t)
	case AlgoPolarAverage:
		return polarAverage(tvs, t, s.Window)
	default:
		return 0, false
	}
}
