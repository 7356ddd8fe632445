package transform

import (
	"math"
	"time"

	"rvdas-go/pkg/record"
)

// Point is a (longitude, latitude) pair, matching GML LinearRing's
// coordinate order.
type Point struct {
	Lon, Lat float64
}

// GeofenceTransform tracks whether incoming position fields fall inside a
// polygonal boundary and emits a message on state transitions (spec.md
// §4.4 "Geofence").
type GeofenceTransform struct {
	Boundary              []Point // closed ring, optionally pre-buffered
	LonField, LatField    string
	EnteringMessage       string
	LeavingMessage        string
	SecondsBetweenChecks  float64

	inside       bool
	haveState    bool
	lastCheck    time.Time
	now          func() time.Time
}

func NewGeofenceTransform(boundary []Point, lonField, latField, enterMsg, leaveMsg string, secondsBetweenChecks float64) *GeofenceTransform {
	return &GeofenceTransform{
		Boundary:             boundary,
		LonField:             lonField,
		LatField:             latField,
		EnteringMessage:      enterMsg,
		LeavingMessage:       leaveMsg,
		SecondsBetweenChecks: secondsBetweenChecks,
		now:                  time.Now,
	}
}

func (g *GeofenceTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}

	if g.SecondsBetweenChecks > 0 && g.haveState {
		if g.now().Sub(g.lastCheck).Seconds() < g.SecondsBetweenChecks {
			return nil
		}
	}

	lon, lonOK := floatField(rec, g.LonField)
	lat, latOK := floatField(rec, g.LatField)
	if !lonOK || !latOK {
		return nil
	}
	g.lastCheck = g.now()

	nowInside := pointInPolygon(lon, lat, g.Boundary)

	if !g.haveState {
		g.inside = nowInside
		g.haveState = true
		return nil
	}

	if nowInside == g.inside {
		return nil
	}
	g.inside = nowInside

	msg := g.LeavingMessage
	if nowInside {
		msg = g.EnteringMessage
	}
	out := record.New(rec.Timestamp, map[string]record.Value{"message": msg})
	return single(out)
}

// pointInPolygon is a standard ray-casting test over a closed ring.
func pointInPolygon(x, y float64, ring []Point) bool {
	inside := false
	n := len(ring)
	if n < 3 {
		return false
	}
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		intersects := ((yi > y) != (yj > y)) &&
			(x < (xj-xi)*(y-yi)/(yj-yi)+xi)
		if intersects {
			inside = !inside
		}
	}
	return inside
}

// BufferRing expands a ring outward by delta degrees along each vertex's
// normal from the ring's centroid -- a simplification adequate for the
// small, roughly-convex boundaries geofences typically describe.
func BufferRing(ring []Point, delta float64) []Point {
	if delta == 0 || len(ring) == 0 {
		return ring
	}
	var cx, cy float64
	for _, p := range ring {
		cx += p.Lon
		cy += p.Lat
	}
	cx /= float64(len(ring))
	cy /= float64(len(ring))

	out := make([]Point, len(ring))
	for i, p := range ring {
		dx, dy := p.Lon-cx, p.Lat-cy
		dist := hypot(dx, dy)
		if dist == 0 {
			out[i] = p
			continue
		}
		scale := (dist + delta) / dist
		out[i] = Point{Lon: cx + dx*scale, Lat: cy + dy*scale}
	}
	return out
}

func hypot(a, b float64) float64 {
	return math.Sqrt(a*a + b*b)
}
