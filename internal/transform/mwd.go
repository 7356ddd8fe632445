package transform

import (
	"fmt"

	"rvdas-go/pkg/record"
)

// MWDTransform renders an NMEA MWD (wind direction & speed) sentence from
// true wind fields, optionally including magnetic wind direction when a
// magnetic variation field is available (spec.md §4.4's TrueWinds family;
// grounded on the original mwd_transform.py).
type MWDTransform struct {
	TrueWindDirField      string
	TrueWindSpeedKtField  string
	TrueWindSpeedMsField  string
	MagneticVariationField string
	TalkerID              string

	trueWindDir      *float64
	trueWindSpeedKt  *float64
	trueWindSpeedMs  *float64
	magneticVariation *float64
}

func (m *MWDTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}

	if v, ok := floatField(rec, m.TrueWindDirField); ok {
		m.trueWindDir = &v
	}
	if m.TrueWindSpeedKtField != "" {
		if v, ok := floatField(rec, m.TrueWindSpeedKtField); ok {
			m.trueWindSpeedKt = &v
		}
	}
	if m.TrueWindSpeedMsField != "" {
		if v, ok := floatField(rec, m.TrueWindSpeedMsField); ok {
			m.trueWindSpeedMs = &v
		}
	}
	if m.MagneticVariationField != "" {
		if v, ok := floatField(rec, m.MagneticVariationField); ok {
			m.magneticVariation = &v
		}
	}

	if m.trueWindDir == nil {
		return nil
	}
	if m.trueWindSpeedKt == nil && m.trueWindSpeedMs == nil {
		return nil
	}

	if m.TrueWindSpeedMsField == "" && m.trueWindSpeedKt != nil {
		ms := *m.trueWindSpeedKt * 0.514444
		m.trueWindSpeedMs = &ms
	}
	if m.TrueWindSpeedKtField == "" && m.trueWindSpeedMs != nil {
		kt := *m.trueWindSpeedMs * 1.94384
		m.trueWindSpeedKt = &kt
	}

	magWinds := ""
	if m.magneticVariation != nil {
		magWinds = fmt.Sprintf("%3.1f", *m.trueWindDir-*m.magneticVariation)
	}

	talker := m.TalkerID
	if talker == "" {
		talker = "ALMWD"
	}

	body := fmt.Sprintf("%s,%3.1f,T,%s,M,%3.1f,N,%3.1f,M",
		talker, *m.trueWindDir, magWinds, valueOrZero(m.trueWindSpeedKt), valueOrZero(m.trueWindSpeedMs))
	checksum := nmeaChecksum(body)
	sentence := fmt.Sprintf("$%s*%02X\r\n", body, checksum)

	out := rec.Clone()
	out.Fields = map[string]record.Value{"nmea": sentence}
	return single(out)
}

func valueOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func nmeaChecksum(s string) byte {
	var sum byte
	for _, c := range s {
		sum ^= byte(c)
	}
	return sum
}
