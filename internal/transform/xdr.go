package transform

import (
	"fmt"

	"rvdas-go/pkg/record"
)

// XDRTransform renders an NMEA XDR (transducer measurement) sentence per
// available field -- barometer, air temperature, sea temperature -- and
// concatenates however many are present into one multi-line record
// (spec.md §4.4's derived-data family; grounded on xdr_transform.py).
type XDRTransform struct {
	BarometerField, BarometerOutputField string
	AirTempField, AirTempOutputField     string
	SeaTempField, SeaTempOutputField     string
	TalkerID                             string
}

func (x *XDRTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}

	talker := x.TalkerID
	if talker == "" {
		talker = "ALXDR"
	}

	var result string

	if x.BarometerField != "" {
		if v, ok := rec.Fields[x.BarometerField]; ok {
			name := x.BarometerOutputField
			if name == "" {
				name = x.BarometerField
			}
			data := fmt.Sprintf("%s,P,%v,B,%s", talker, v, name)
			result += fmt.Sprintf("$%s*%02X\r\n", data, nmeaChecksum(data))
		}
	}

	if x.AirTempField != "" {
		if v, ok := floatField(rec, x.AirTempField); ok {
			name := x.AirTempOutputField
			if name == "" {
				name = x.AirTempField
			}
			data := fmt.Sprintf("%s,C,%3.2f,C,%s", talker, v, name)
			result += fmt.Sprintf("$%s*%02X\r\n", data, nmeaChecksum(data))
		}
	}

	if x.SeaTempField != "" {
		if v, ok := floatField(rec, x.SeaTempField); ok {
			name := x.SeaTempOutputField
			if name == "" {
				name = x.SeaTempField
			}
			data := fmt.Sprintf("%s,C,%3.2f,C,%s", talker, v, name)
			result += fmt.Sprintf("$%s*%02X\r\n", data, nmeaChecksum(data))
		}
	}

	if result == "" {
		return nil
	}

	out := rec.Clone()
	out.Fields = map[string]record.Value{"nmea": result}
	return single(out)
}
