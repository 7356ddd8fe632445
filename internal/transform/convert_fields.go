package transform

import (
	"github.com/sirupsen/logrus"

	"rvdas-go/internal/convert"
	"rvdas-go/pkg/record"
)

// ConvertFieldsTransform wraps internal/convert.Fields as a Transform
// (spec.md §4.4 "ConvertFields").
type ConvertFieldsTransform struct {
	FieldSpecs              map[string]convert.FieldSpec
	LatLonSpecs              map[string]convert.LatLonSpec
	DeleteSourceFields       bool
	DeleteUnconvertedFields  bool
	Quiet                    bool
	Logger                   *logrus.Logger
}

func (c *ConvertFieldsTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	out := rec.Clone()
	converted := convert.Fields(out.Fields, c.FieldSpecs, c.LatLonSpecs, c.DeleteSourceFields, c.DeleteUnconvertedFields, c.Quiet)
	if converted == nil {
		return nil
	}
	out.Fields = converted
	return single(out)
}
