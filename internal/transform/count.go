package transform

import (
	"rvdas-go/pkg/record"
)

// CountTransform counts records received per data_id and periodically
// emits the running totals, resetting its window on each emission.
type CountTransform struct {
	Interval float64 // seconds between emissions

	counts       map[string]int64
	windowStart  float64
	haveStart    bool
}

func NewCountTransform(interval float64) *CountTransform {
	return &CountTransform{Interval: interval, counts: map[string]int64{}}
}

func (c *CountTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	if !c.haveStart {
		c.windowStart = rec.Timestamp
		c.haveStart = true
	}
	id := rec.DataID
	if id == "" {
		id = "unknown"
	}
	c.counts[id]++

	if rec.Timestamp-c.windowStart < c.Interval {
		return nil
	}

	fields := make(map[string]record.Value, len(c.counts))
	for id, n := range c.counts {
		fields[id] = n
	}
	c.counts = map[string]int64{}
	c.windowStart = rec.Timestamp
	return single(record.New(rec.Timestamp, fields))
}

// MaxMinTransform tracks the running maximum and minimum of each numeric
// field it sees and emits them alongside the original fields.
type MaxMinTransform struct {
	max map[string]float64
	min map[string]float64
}

func NewMaxMinTransform() *MaxMinTransform {
	return &MaxMinTransform{max: map[string]float64{}, min: map[string]float64{}}
}

func (m *MaxMinTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	out := map[string]record.Value{}
	for name, val := range rec.Fields {
		f, ok := asFloat(val)
		if !ok {
			out[name] = val
			continue
		}
		out[name] = f

		if cur, ok := m.max[name]; !ok || f > cur {
			m.max[name] = f
		}
		if cur, ok := m.min[name]; !ok || f < cur {
			m.min[name] = f
		}
		out[name+"_max"] = m.max[name]
		out[name+"_min"] = m.min[name]
	}
	return single(record.New(rec.Timestamp, out))
}
