package transform

import (
	"strings"
	"sync"

	"rvdas-go/pkg/record"
)

// XMLAggregatorTransform buffers incoming text lines until the configured
// tag's closing element is seen, then emits the accumulated buffer as one
// record and resets (spec.md §4.4 "XMLAggregator", grounded on
// xml_aggregator_transform.py). Detection of completion is a closing-tag
// string match rather than full SAX parsing, which is what the original's
// endElement callback reduces to in practice for a single top-level tag.
type XMLAggregatorTransform struct {
	Tag string

	mu        sync.Mutex
	buffer    strings.Builder
	closeTag  string
}

func NewXMLAggregatorTransform(tag string) *XMLAggregatorTransform {
	return &XMLAggregatorTransform{Tag: tag, closeTag: "</" + tag + ">"}
}

// ApplyLine mirrors the original's transform(): feed one text line in, get
// back the completed XML document, or "" if still accumulating.
func (x *XMLAggregatorTransform) ApplyLine(line string) string {
	if line == "" {
		return ""
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	x.buffer.WriteString(line)
	x.buffer.WriteString("\n")

	if strings.Contains(line, x.closeTag) {
		doc := x.buffer.String()
		x.buffer.Reset()
		return doc
	}
	return ""
}

func (x *XMLAggregatorTransform) Apply(rec *record.Record) []*record.Record {
	if rec == nil {
		return nil
	}
	line, ok := rec.Fields["text"]
	if !ok {
		return nil
	}
	s, ok := line.(string)
	if !ok {
		return nil
	}
	doc := x.ApplyLine(s)
	if doc == "" {
		return nil
	}
	out := record.New(rec.Timestamp, map[string]record.Value{"xml": doc})
	return single(out)
}
