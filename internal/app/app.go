// Package app wires rvdasd's components together: load the ambient
// config and the cruise definition file, stand up the control plane
// (internal/control), build the data-acquisition pipeline the active
// cruise mode currently calls for, and serve the record-store HTTP
// surface and metrics alongside it. App's New/initializeComponents/
// Start/Run/Stop lifecycle follows the usual load-config -> validate ->
// set up logging -> sequential component init -> background-serve ->
// block-on-signal -> graceful-stop shape.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"rvdas-go/internal/config"
	"rvdas-go/internal/control"
	"rvdas-go/internal/listener"
	"rvdas-go/internal/metrics"
	"rvdas-go/internal/pipeline"
	"rvdas-go/internal/recordstore"
	"rvdas-go/internal/tracing"
)

// App owns every long-lived component rvdasd runs: the control plane,
// the currently active pipeline graph, the record-store listener, and
// the metrics server.
type App struct {
	configFile string
	config     *config.Config
	logger     *logrus.Logger
	tracer     *tracing.Provider

	store *control.Store
	api   *control.API

	recordStore recordstore.Store
	graph       *pipeline.Graph
	nodeNames   []string

	listener      *listener.Listener
	metricsServer *metrics.MetricsServer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads configuration, opens the control store, loads the cruise
// definition into it, and builds the pipeline graph for whatever mode
// the cruise definition names as its default: load-then-validate-then-
// apply-defaults, then initializeComponents, with no component left
// half-built on error.
func New(configFile string) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("app: loading config: %w", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.App.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	tracer, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Headers:     cfg.Tracing.Headers,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("app: building tracer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		configFile: configFile,
		config:     cfg,
		logger:     logger,
		tracer:     tracer,
		ctx:        ctx,
		cancel:     cancel,
	}

	if err := a.initializeComponents(); err != nil {
		cancel()
		return nil, err
	}
	return a, nil
}

// initializeComponents brings up the control plane, loads the cruise
// definition into it, builds the active pipeline, and constructs (but
// does not yet start) the record-store listener and metrics server, in
// dependency order.
func (a *App) initializeComponents() error {
	if err := a.initControl(); err != nil {
		return err
	}
	if err := a.initPipeline(); err != nil {
		return err
	}
	a.recordStore = recordstore.NewMemory()
	if err := a.initListener(); err != nil {
		return err
	}
	a.initMetricsServer()
	return nil
}

func (a *App) initControl() error {
	store, err := control.Open(a.config.Control.StorePath)
	if err != nil {
		return fmt.Errorf("app: opening control store: %w", err)
	}
	a.store = store
	a.api = control.NewAPI(store, a.logger, a.tracer)

	def, err := config.LoadCruiseDefinition(a.config.Control.CruiseDefinitionFile)
	if err != nil {
		return fmt.Errorf("app: loading cruise definition: %w", err)
	}
	spec, err := control.FromCruiseDefinition(def)
	if err != nil {
		return fmt.Errorf("app: converting cruise definition: %w", err)
	}
	if err := a.api.LoadConfiguration(a.ctx, spec); err != nil {
		return fmt.Errorf("app: loading cruise definition into control store: %w", err)
	}
	return nil
}

// initPipeline builds one pipeline.Graph spanning every logger's
// currently-assigned configuration. Node names are namespaced
// "<logger>/<node>" since two loggers' configs are free to reuse the
// same node names (e.g. every config has a "reader"); a config's
// internal Subscriptions never cross a logger boundary, so namespacing
// both the node map's keys and its Subscriptions entries the same way
// keeps the graph's wiring intact.
func (a *App) initPipeline() error {
	loggers, err := a.api.GetLoggers(a.ctx)
	if err != nil {
		return fmt.Errorf("app: listing loggers: %w", err)
	}

	loggerNames := make(map[int64]string, len(loggers))
	for _, l := range loggers {
		if l.ConfigID == nil {
			a.logger.WithField("logger", l.Name).Warn("logger has no assigned configuration, skipping")
			continue
		}
		loggerNames[l.ID] = l.Name
	}

	currentConfigs, err := a.api.GetLoggerConfigs(a.ctx, "")
	if err != nil {
		return fmt.Errorf("app: fetching current logger configs: %w", err)
	}

	combined := make(map[string]pipeline.NodeSpec)
	for _, lc := range currentConfigs {
		loggerName, ok := loggerNames[lc.LoggerID]
		if !ok {
			continue
		}
		nodes, err := control.ToPipelineSpec(lc.Spec)
		if err != nil {
			return fmt.Errorf("app: decoding pipeline spec for logger %q: %w", loggerName, err)
		}
		for name, spec := range nodes {
			namespaced := spec
			subs := make([]string, len(spec.Subscriptions))
			for i, s := range spec.Subscriptions {
				subs[i] = loggerName + "/" + s
			}
			namespaced.Subscriptions = subs
			combined[loggerName+"/"+name] = namespaced
		}
	}

	graph, err := pipeline.NewGraphWithTracer(combined, a.logger, a.tracer)
	if err != nil {
		return fmt.Errorf("app: building pipeline graph: %w", err)
	}
	a.graph = graph
	a.nodeNames = graph.Names()
	return nil
}

func (a *App) initListener() error {
	if !a.config.Listener.Enabled {
		return nil
	}
	l, err := listener.New(listener.Config{
		Addr:   a.config.Listener.Addr,
		Store:  a.recordStore,
		Logger: a.logger,
	})
	if err != nil {
		return fmt.Errorf("app: building record-store listener: %w", err)
	}
	a.listener = l
	return nil
}

func (a *App) initMetricsServer() {
	if !a.config.Metrics.Enabled {
		return
	}
	a.metricsServer = metrics.NewMetricsServer(a.config.Metrics.Addr, a.logger)
}

// Start runs every pipeline node in its own goroutine and starts the
// listener and metrics server in the background: bring components up
// in dependency order, block on nothing.
func (a *App) Start() error {
	a.logger.WithField("nodes", len(a.nodeNames)).Info("starting pipeline")
	for _, name := range a.nodeNames {
		node := a.graph.Node(name)
		a.wg.Add(1)
		go func(name string, node *pipeline.Node) {
			defer a.wg.Done()
			if err := node.Run(a.ctx); err != nil {
				a.logger.WithError(err).WithField("node", name).Warn("pipeline node exited")
			}
		}(name, node)
	}

	if a.listener != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.listener.Serve(a.ctx); err != nil {
				a.logger.WithError(err).Error("record-store listener error")
			}
		}()
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Start(); err != nil {
			return fmt.Errorf("app: starting metrics server: %w", err)
		}
	}

	return nil
}

// Run starts the app and blocks until SIGINT/SIGTERM, then stops it:
// start, wait on sigChan, Stop on receipt.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	a.logger.Info("shutdown signal received")
	return a.Stop()
}

// Stop quits and closes every pipeline node, stops the listener and
// metrics server, and closes the control store -- reverse of Start's
// bring-up order: cancel context, shut down components, wait for
// goroutines with a grace period.
func (a *App) Stop() error {
	a.cancel()

	for _, name := range a.nodeNames {
		node := a.graph.Node(name)
		node.Quit()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		a.logger.Warn("timed out waiting for pipeline shutdown")
	}

	for _, name := range a.nodeNames {
		if err := a.graph.Node(name).Close(); err != nil {
			a.logger.WithError(err).WithField("node", name).Warn("error closing pipeline node")
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Stop(); err != nil {
			a.logger.WithError(err).Warn("error stopping metrics server")
		}
	}

	if a.recordStore != nil {
		if err := a.recordStore.Close(); err != nil {
			a.logger.WithError(err).Warn("error closing record store")
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.WithError(err).Warn("error closing control store")
		}
	}

	return nil
}
