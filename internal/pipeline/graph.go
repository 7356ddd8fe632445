package pipeline

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"rvdas-go/internal/parser"
	"rvdas-go/internal/readers"
	"rvdas-go/internal/tracing"
	"rvdas-go/internal/transform"
	"rvdas-go/internal/writers"
	"rvdas-go/pkg/backpressure"
)

// NodeSpec is the statically-typed counterpart of one entry in
// run_dataflow.py's config dict: a node name, the component class it
// instantiates, that class's keyword arguments, and the list of upstream
// node names it subscribes to. Go has no globals().get(class_name), so
// Class is resolved against the readerFactories/transformFactories/
// writerFactories registries below instead of looked up dynamically --
// the same "declare a class name, get kwargs applied to a constructor"
// shape as _class_kwargs_from_config, without reflection over arbitrary
// package globals.
type NodeSpec struct {
	Class         string
	Kwargs        map[string]interface{}
	Subscriptions []string

	// Parser configures field parsing for a reader node; ignored for
	// transform/writer nodes. Reproduces run_dataflow.py's special
	// casing of the "reader" kwarg as a nested component definition,
	// since every reader this pipeline runs needs a parser.Config to
	// turn its raw lines into Records.
	Parser *parser.Config

	// QueueCapacity/QueuePolicy configure the backpressure.Queue a
	// transform or writer node consumes from (spec.md §5). Capacity <= 0
	// is unbounded.
	QueueCapacity int
	QueuePolicy   backpressure.Policy
}

type readerFactory func(kwargs map[string]interface{}) (readers.Reader, error)
type transformFactory func(kwargs map[string]interface{}) (transform.Transform, error)
type writerFactory func(kwargs map[string]interface{}) (writers.Writer, error)

var readerFactories = map[string]readerFactory{
	"logfile_reader": func(kwargs map[string]interface{}) (readers.Reader, error) {
		var cfg readers.LogfileReaderConfig
		if err := decode(kwargs, &cfg); err != nil {
			return nil, err
		}
		return readers.NewLogfileReader(cfg)
	},
	"serial_reader": func(kwargs map[string]interface{}) (readers.Reader, error) {
		var cfg readers.SerialReaderConfig
		if err := decode(kwargs, &cfg); err != nil {
			return nil, err
		}
		return readers.NewSerialReader(cfg)
	},
	"udp_reader": func(kwargs map[string]interface{}) (readers.Reader, error) {
		var cfg readers.UDPReaderConfig
		if err := decode(kwargs, &cfg); err != nil {
			return nil, err
		}
		return readers.NewUDPReader(cfg)
	},
}

var transformFactories = map[string]transformFactory{
	"true_winds": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var t transform.TrueWindsTransform
		if err := decode(kwargs, &t); err != nil {
			return nil, err
		}
		return &t, nil
	},
	"mwd": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var t transform.MWDTransform
		if err := decode(kwargs, &t); err != nil {
			return nil, err
		}
		return &t, nil
	},
	"xdr": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var t transform.XDRTransform
		if err := decode(kwargs, &t); err != nil {
			return nil, err
		}
		return &t, nil
	},
	"convert_fields": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var t transform.ConvertFieldsTransform
		if err := decode(kwargs, &t); err != nil {
			return nil, err
		}
		return &t, nil
	},
	"geofence": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var t transform.GeofenceTransform
		if err := decode(kwargs, &t); err != nil {
			return nil, err
		}
		return &t, nil
	},
	"xml_aggregator": func(kwargs map[string]interface{}) (transform.Transform, error) {
		tag, _ := kwargs["tag"].(string)
		return transform.NewXMLAggregatorTransform(tag), nil
	},
	"filter": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var fields []string
		if err := decode(kwargs["fields"], &fields); err != nil {
			return nil, err
		}
		return transform.NewFilterTransform(fields), nil
	},
	"select": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var ids []string
		if err := decode(kwargs["data_ids"], &ids); err != nil {
			return nil, err
		}
		return transform.NewSelectTransform(ids), nil
	},
	"strip": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var fields []string
		if err := decode(kwargs["fields"], &fields); err != nil {
			return nil, err
		}
		return transform.NewStripTransform(fields), nil
	},
	"rename": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var rename map[string]string
		if err := decode(kwargs["rename"], &rename); err != nil {
			return nil, err
		}
		return transform.NewRenameTransform(rename), nil
	},
	"timestamp": func(kwargs map[string]interface{}) (transform.Transform, error) {
		layout, _ := kwargs["time_format"].(string)
		return transform.NewTimestampTransform(layout), nil
	},
	"count": func(kwargs map[string]interface{}) (transform.Transform, error) {
		interval, _ := kwargs["interval"].(float64)
		return transform.NewCountTransform(interval), nil
	},
	"max_min": func(map[string]interface{}) (transform.Transform, error) {
		return transform.NewMaxMinTransform(), nil
	},
	"delta": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var polar map[string]bool
		if err := decode(kwargs["polar_fields"], &polar); err != nil {
			return nil, err
		}
		asRate, _ := kwargs["as_rate"].(bool)
		return transform.NewDeltaTransform(polar, asRate), nil
	},
	"interpolation": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var outputs map[string]transform.OutputSpec
		if err := decode(kwargs["outputs"], &outputs); err != nil {
			return nil, err
		}
		interval, _ := kwargs["interval"].(float64)
		window, _ := kwargs["window"].(float64)
		return transform.NewInterpolationTransform(outputs, interval, window), nil
	},
	"subsample": func(kwargs map[string]interface{}) (transform.Transform, error) {
		var outputs map[string]transform.OutputSpec
		if err := decode(kwargs["outputs"], &outputs); err != nil {
			return nil, err
		}
		interval, _ := kwargs["interval"].(float64)
		window, _ := kwargs["window"].(float64)
		return transform.NewSubsampleTransform(outputs, interval, window), nil
	},
}

// recordstore_writer is deliberately absent here: it needs a live
// recordstore.Store, which isn't expressible as a Kwargs map value, so
// callers that want one build a RecordStoreWriter directly and pass it to
// NewWriterNode instead of going through a NodeSpec.
var writerFactories = map[string]writerFactory{
	"file_writer": func(kwargs map[string]interface{}) (writers.Writer, error) {
		var cfg writers.FileWriterConfig
		if err := decode(kwargs, &cfg); err != nil {
			return nil, err
		}
		return writers.NewFileWriter(cfg)
	},
	"logfile_writer": func(kwargs map[string]interface{}) (writers.Writer, error) {
		var cfg writers.LogfileWriterConfig
		if err := decode(kwargs, &cfg); err != nil {
			return nil, err
		}
		return writers.NewLogfileWriter(cfg)
	},
	"network_writer": func(kwargs map[string]interface{}) (writers.Writer, error) {
		var cfg writers.NetworkWriterConfig
		if err := decode(kwargs, &cfg); err != nil {
			return nil, err
		}
		return writers.NewNetworkWriter(cfg)
	},
	"cached_data_writer": func(kwargs map[string]interface{}) (writers.Writer, error) {
		var cfg writers.CachedDataWriterConfig
		if err := decode(kwargs, &cfg); err != nil {
			return nil, err
		}
		return writers.NewCachedDataWriter(cfg)
	},
}

// decode fills out from kwargs by field name, case-insensitively (the
// config structs carry no mapstructure tags, so e.g. a kwargs key "path"
// matches a LogfileReaderConfig.Path field).
func decode(kwargs interface{}, out interface{}) error {
	if kwargs == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(kwargs)
}

// Graph is a wired set of Nodes, built from a map of NodeSpecs the way
// run_dataflow.py's DataflowRunner.instantiate_nodes builds a dict of
// DataflowNodes: construct every node first, then connect each one to
// the sources it subscribes to.
type Graph struct {
	nodes  map[string]*Node
	logger *logrus.Logger
}

// NewGraph builds and wires a Graph from specs. Each NodeSpec.Class is
// looked up in exactly one of readerFactories/transformFactories/
// writerFactories -- a node is a reader, transform, or writer, never more
// than one.
func NewGraph(specs map[string]NodeSpec, logger *logrus.Logger) (*Graph, error) {
	return NewGraphWithTracer(specs, logger, nil)
}

// NewGraphWithTracer is NewGraph plus a tracing.Provider applied to every
// built node (SPEC_FULL.md's "one span per pipeline-Node processing
// call"). tracer may be nil, same effect as NewGraph.
func NewGraphWithTracer(specs map[string]NodeSpec, logger *logrus.Logger, tracer *tracing.Provider) (*Graph, error) {
	logger = orStandard(logger)
	nodes := make(map[string]*Node, len(specs))

	for name, spec := range specs {
		node, err := buildNode(name, spec, logger)
		if err != nil {
			return nil, fmt.Errorf("pipeline: node %q: %w", name, err)
		}
		if tracer != nil {
			node.SetTracer(tracer)
		}
		nodes[name] = node
	}

	for name, spec := range specs {
		node := nodes[name]
		if len(spec.Subscriptions) == 0 {
			logger.WithField("node", name).Warn("node is not reading from any other node")
			continue
		}
		for _, srcName := range spec.Subscriptions {
			src, ok := nodes[srcName]
			if !ok {
				return nil, fmt.Errorf("pipeline: node %q subscribes to unknown node %q", name, srcName)
			}
			src.AddSubscriber(node)
		}
	}

	return &Graph{nodes: nodes, logger: logger}, nil
}

func buildNode(name string, spec NodeSpec, logger *logrus.Logger) (*Node, error) {
	if f, ok := readerFactories[spec.Class]; ok {
		r, err := f(spec.Kwargs)
		if err != nil {
			return nil, err
		}
		var p *parser.Parser
		if spec.Parser != nil {
			var err error
			p, err = parser.New(*spec.Parser)
			if err != nil {
				return nil, err
			}
		}
		return NewReaderNode(name, r, p, logger), nil
	}
	if f, ok := transformFactories[spec.Class]; ok {
		t, err := f(spec.Kwargs)
		if err != nil {
			return nil, err
		}
		return NewTransformNode(name, t, backpressure.NewQueue(name, spec.QueueCapacity, spec.QueuePolicy, logger), logger), nil
	}
	if f, ok := writerFactories[spec.Class]; ok {
		w, err := f(spec.Kwargs)
		if err != nil {
			return nil, err
		}
		return NewWriterNode(name, w, backpressure.NewQueue(name, spec.QueueCapacity, spec.QueuePolicy, logger), logger), nil
	}
	return nil, fmt.Errorf("unknown component class %q", spec.Class)
}

// Node returns the named node, or nil if no such node exists.
func (g *Graph) Node(name string) *Node {
	return g.nodes[name]
}

// Names returns every node name in the graph.
func (g *Graph) Names() []string {
	out := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		out = append(out, name)
	}
	return out
}
