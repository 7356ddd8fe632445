package transform

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"rvdas-go/pkg/record"
)

// Algorithm names recognized by InterpolationTransform.
const (
	AlgoBoxcarAverage = "boxcar_average"
	AlgoNearest       = "nearest"
	AlgoPolarAverage  = "polar_average"
)

// OutputSpec describes one output field: which source field feeds it, and
// which algorithm computes its value at each emission timestamp.
type OutputSpec struct {
	Source    string
	Algorithm string
}

type timedValue struct {
	ts  float64
	val float64
}

// InterpolationTransform computes one or more output fields on a regular
// timeline from cached, windowed source-field observations (spec.md §4.4
// "Interpolation").
type InterpolationTransform struct {
	Outputs  map[string]OutputSpec
	Interval float64
	Window   float64
	Logger   *logrus.Logger

	cache           map[string][]timedValue
	nextTimestamp   float64
	haveNext        bool
}

func NewInterpolationTransform(outputs map[string]OutputSpec, interval, window float64) *InterpolationTransform {
	return &InterpolationTransform{
		Outputs:  outputs,
		Interval: interval,
		Window:   window,
		Logger:   logrus.StandardLogger(),
		cache:    map[string][]timedValue{},
	}
}

func (i *InterpolationTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}

	sources := map[string]bool{}
	for _, spec := range i.Outputs {
		sources[spec.Source] = true
	}
	for name := range sources {
		val, ok := rec.Fields[name]
		if !ok {
			continue
		}
		f, ok := asFloat(val)
		if !ok {
			continue
		}
		i.cache[name] = append(i.cache[name], timedValue{ts: rec.Timestamp, val: f})
	}

	latestTS, ok := i.latestTimestamp()
	if !ok {
		return nil
	}

	if !i.haveNext {
		oldest, ok := i.oldestTimestamp()
		if !ok {
			return nil
		}
		i.nextTimestamp = oldest + i.Window/2
		i.haveNext = true
	}

	var out []*record.Record
	for i.nextTimestamp <= latestTS-i.Window/2 {
		fields := map[string]record.Value{}
		for name, spec := range i.Outputs {
			val, ok := i.computeAt(spec, i.nextTimestamp)
			if ok {
				fields[name] = val
			}
		}
		if len(fields) > 0 {
			out = append(out, record.New(i.nextTimestamp, fields))
		}
		i.pruneBefore(i.nextTimestamp - i.Window/2)

		next := i.nextTimestamp + i.Interval
		oldest, _ := i.oldestTimestamp()
		alt := oldest + i.Window/2
		if alt > next {
			next = alt
		}
		i.nextTimestamp = next
	}

	return out
}

func (i *InterpolationTransform) latestTimestamp() (float64, bool) {
	found := false
	var latest float64
	for _, tvs := range i.cache {
		if len(tvs) == 0 {
			continue
		}
		ts := tvs[len(tvs)-1].ts
		if !found || ts > latest {
			latest = ts
			found = true
		}
	}
	return latest, found
}

func (i *InterpolationTransform) oldestTimestamp() (float64, bool) {
	found := false
	var oldest float64
	for _, tvs := range i.cache {
		if len(tvs) == 0 {
			continue
		}
		ts := tvs[0].ts
		if !found || ts < oldest {
			oldest = ts
			found = true
		}
	}
	return oldest, found
}

func (i *InterpolationTransform) pruneBefore(cutoff float64) {
	for name, tvs := range i.cache {
		idx := 0
		for idx < len(tvs) && tvs[idx].ts < cutoff {
			idx++
		}
		i.cache[name] = tvs[idx:]
	}
}

func (i *InterpolationTransform) computeAt(spec OutputSpec, t float64) (float64, bool) {
	tvs := i.cache[spec.Source]
	switch spec.Algorithm {
	case AlgoBoxcarAverage:
		return boxcarAverage(tvs, t, i.Window)
	case AlgoNearest:
		return nearest(tvs, t)
	case AlgoPolarAverage:
		return polarAverage(tvs, t, i.Window)
	default:
		i.Logger.WithField("algorithm", spec.Algorithm).Error("interpolation: unknown algorithm")
		return 0, false
	}
}

func boxcarAverage(tvs []timedValue, t, window float64) (float64, bool) {
	var sum float64
	var n int
	for _, tv := range tvs {
		if tv.ts >= t-window/2 && tv.ts <= t+window/2 {
			sum += tv.val
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// nearest returns the value whose timestamp minimizes |ts-t|; ties go to
// the earlier timestamp. tvs is assumed sorted by timestamp (the cache
// fills in arrival order, which for a single source is monotonic in
// practice); we still search robustly rather than assuming.
func nearest(tvs []timedValue, t float64) (float64, bool) {
	if len(tvs) == 0 {
		return 0, false
	}
	sorted := make([]timedValue, len(tvs))
	copy(sorted, tvs)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].ts < sorted[b].ts })

	best := sorted[0]
	bestDist := math.Abs(best.ts - t)
	for _, tv := range sorted[1:] {
		dist := math.Abs(tv.ts - t)
		if dist > bestDist {
			break
		}
		if dist < bestDist {
			best = tv
			bestDist = dist
		}
	}
	return best.val, true
}

func polarAverage(tvs []timedValue, t, window float64) (float64, bool) {
	var sumSin, sumCos float64
	var n int
	for _, tv := range tvs {
		if tv.ts >= t-window/2 && tv.ts <= t+window/2 {
			rad := tv.val * dtor
			sumSin += math.Sin(rad)
			sumCos += math.Cos(rad)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	deg := math.Atan2(sumSin/float64(n), sumCos/float64(n)) / dtor
	if deg < 0 {
		deg += 360
	}
	return deg, true
}
