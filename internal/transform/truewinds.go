package transform

import (
	"math"

	"rvdas-go/pkg/record"
)

// TrueWindsTransform computes true wind direction/speed and apparent wind
// direction from vessel course/speed/heading and anemometer relative
// wind, per spec.md §4.4 ("TrueWinds (DerivedDataTransform)") and the
// original truew.py vector-composition algorithm.
type TrueWindsTransform struct {
	CourseField    string
	SpeedField     string
	HeadingField   string
	WindDirField   string
	WindSpeedField string

	TrueDirName      string
	TrueSpeedName    string
	ApparentDirName  string
	UpdateOnFields   map[string]bool // empty/nil means "any field"
	ZeroLineRef      float64
	ConvertWindFact  float64
	ConvertSpeedFact float64
	MetadataInterval float64 // seconds; 0 disables

	courseVal, speedVal, headingVal, windDirVal, windSpeedVal         *float64
	courseValTime, speedValTime, headingValTime, windDirTime, windSpd float64
	lastMetadataSend                                                  float64
}

func (t *TrueWindsTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}

	timestamp := rec.Timestamp
	if timestamp == 0 {
		return nil
	}

	update := len(t.UpdateOnFields) == 0

	if v, ok := floatField(rec, t.CourseField); ok && timestamp >= t.courseValTime {
		t.courseVal = &v
		t.courseValTime = timestamp
		if t.UpdateOnFields[t.CourseField] {
			update = true
		}
	}
	if v, ok := floatField(rec, t.SpeedField); ok && timestamp >= t.speedValTime {
		scaled := v * orOne(t.ConvertSpeedFact)
		t.speedVal = &scaled
		t.speedValTime = timestamp
		if t.UpdateOnFields[t.SpeedField] {
			update = true
		}
	}
	if v, ok := floatField(rec, t.HeadingField); ok && timestamp >= t.headingValTime {
		t.headingVal = &v
		t.headingValTime = timestamp
		if t.UpdateOnFields[t.HeadingField] {
			update = true
		}
	}
	if v, ok := floatField(rec, t.WindDirField); ok && timestamp >= t.windDirTime {
		t.windDirVal = &v
		t.windDirTime = timestamp
		if t.UpdateOnFields[t.WindDirField] {
			update = true
		}
	}
	if v, ok := floatField(rec, t.WindSpeedField); ok && timestamp >= t.windSpd {
		scaled := v * orOne(t.ConvertWindFact)
		t.windSpeedVal = &scaled
		t.windSpd = timestamp
		if t.UpdateOnFields[t.WindSpeedField] {
			update = true
		}
	}

	if t.courseVal == nil || t.speedVal == nil || t.headingVal == nil ||
		t.windDirVal == nil || t.windSpeedVal == nil {
		return nil
	}
	if !update {
		return nil
	}

	tdir, tspd, adir, ok := TrueWinds(*t.courseVal, *t.speedVal, *t.headingVal, *t.windDirVal, *t.windSpeedVal, t.ZeroLineRef)
	if !ok {
		return nil
	}

	out := record.New(timestamp, map[string]record.Value{
		t.TrueDirName:     tdir,
		t.TrueSpeedName:   tspd,
		t.ApparentDirName: adir,
	})

	if t.MetadataInterval > 0 && timestamp-t.MetadataInterval > t.lastMetadataSend {
		t.lastMetadataSend = timestamp
		out.Metadata[t.TrueDirName] = map[string]string{"units": "degrees"}
		out.Metadata[t.TrueSpeedName] = map[string]string{"units": "speed units of input"}
		out.Metadata[t.ApparentDirName] = map[string]string{"units": "degrees"}
	}

	return single(out)
}

func orOne(f float64) float64 {
	if f == 0 {
		return 1
	}
	return f
}

func floatField(rec *record.Record, field string) (float64, bool) {
	if field == "" {
		return 0, false
	}
	v, ok := rec.Fields[field]
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

const dtor = math.Pi / 180

// TrueWinds is the direct port of the original truew() algorithm: a
// geometric composition of the vessel's course/speed vector and the
// apparent wind vector, referenced through a zero-line offset. It
// validates inputs are within [0, 360] (course/heading/wind dir) and
// non-negative (speeds); invalid input returns ok=false.
func TrueWinds(crse, cspd, hd, wdir, wspd, zlr float64) (tdir, tspd, adir float64, ok bool) {
	if crse < 0 || crse > 360 || cspd < 0 || wdir < 0 || wdir > 360 ||
		wspd < 0 || hd < 0 || hd > 360 {
		return 0, 0, 0, false
	}
	if zlr < 0 || zlr > 360 {
		zlr = 0
	}

	mcrse := 90 - crse
	if mcrse <= 0 {
		mcrse += 360
	}

	adir = hd + wdir + zlr
	for adir >= 360 {
		adir -= 360
	}

	mwdir := 270 - adir
	if mwdir <= 0 {
		mwdir += 360
	}
	if mwdir > 360 {
		mwdir -= 360
	}

	x := wspd*math.Cos(mwdir*dtor) + cspd*math.Cos(mcrse*dtor)
	y := wspd*math.Sin(mwdir*dtor) + cspd*math.Sin(mcrse*dtor)
	tspd = math.Sqrt(x*x + y*y)

	calmFlag := 1.0
	var mtdir float64
	if math.Abs(x) > 1e-5 {
		mtdir = math.Atan2(y, x) / dtor
	} else if math.Abs(y) > 1e-5 {
		mtdir = 180.0 - (90.0*y)/math.Abs(y)
	} else {
		mtdir = 270.0
		calmFlag = 0
	}

	tdir = 270 - mtdir
	for tdir < 0 {
		tdir = (tdir + 360) * calmFlag
	}
	for tdir > 360 {
		tdir = (tdir - 360) * calmFlag
	}
	if calmFlag == 1 && tdir < 0.0001 {
		tdir = 360
	}

	return tdir, tspd, adir, true
}
