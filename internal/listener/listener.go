// Package listener implements the "listener factory" of spec.md §4.8: it
// builds the net.Listener/http.Handler pairs that the pluggable record
// store and the cached-data writer's counterpart hand off to external
// transport. This is explicitly NOT the admin/operator REST surface
// (spec.md's Non-goals exclude that) -- it only serves the record-store
// read/write surface a remote CachedDataWriter or another rvdasd process
// talks to.
//
// Grounded on internal/app/initialization.go's initHTTPServer (mux.Router
// + http.Server{Addr, Handler} construction) and internal/app/app.go's
// Stop (context.WithTimeout + Shutdown) for the graceful-shutdown shape.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"rvdas-go/internal/recordstore"
	"rvdas-go/pkg/record"
)

// Config configures a Listener.
type Config struct {
	Addr           string
	Store          recordstore.Store
	ShutdownGrace  time.Duration
	Logger         *logrus.Logger
}

// Listener serves the record store's read/write surface over HTTP.
type Listener struct {
	cfg    Config
	ln     net.Listener
	server *http.Server
	logger *logrus.Logger
}

// New builds a Listener and binds its net.Listener, but does not start
// serving -- call Serve to do that.
func New(cfg Config) (*Listener, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("listener: Store is required")
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listener: listen %s: %w", cfg.Addr, err)
	}

	router := mux.NewRouter()
	l := &Listener{cfg: cfg, ln: ln, logger: logger}
	l.registerRoutes(router)
	l.server = &http.Server{Handler: router}
	return l, nil
}

// Addr returns the address the Listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve blocks, accepting connections until ctx is cancelled or Shutdown
// is called directly.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), l.cfg.ShutdownGrace)
		defer cancel()
		if err := l.server.Shutdown(shutCtx); err != nil {
			l.logger.WithError(err).Warn("listener shutdown error")
		}
	}()

	l.logger.WithField("addr", l.ln.Addr().String()).Info("record-store listener serving")
	err := l.server.Serve(l.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (l *Listener) registerRoutes(router *mux.Router) {
	router.HandleFunc("/records/{table}", l.writeRecord).Methods(http.MethodPost)
	router.HandleFunc("/records/{table}", l.readRecords).Methods(http.MethodGet)
}

// writeRecord handles POST /records/{table}: the body is one Record's
// canonical JSON form (pkg/record.ToJSON), written to the table, creating
// it from the record's shape if this is the first write -- same contract
// as internal/writers.RecordStoreWriter, just reached over the wire.
func (l *Listener) writeRecord(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]

	var rec record.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, fmt.Sprintf("invalid record body: %v", err), http.StatusBadRequest)
		return
	}

	if !l.cfg.Store.TableExists(table) {
		if err := l.cfg.Store.CreateTableFromRecord(table, &rec); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if err := l.cfg.Store.WriteRecord(table, &rec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// readRecords handles GET /records/{table}?fields=a,b&start=N[&stop=M].
// stop absent means "everything from start to the end of the table",
// matching recordstore.Store.ReadRange's half-open [start, stop) contract.
func (l *Listener) readRecords(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	q := r.URL.Query()

	var fields []string
	if raw := q.Get("fields"); raw != "" {
		fields = strings.Split(raw, ",")
	}

	start, _ := strconv.Atoi(q.Get("start"))
	stop := -1
	if raw := q.Get("stop"); raw != "" {
		var err error
		stop, err = strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid stop", http.StatusBadRequest)
			return
		}
	}

	recs, err := l.cfg.Store.ReadRange(table, fields, start, stop)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(recs); err != nil {
		l.logger.WithError(err).Error("failed to encode record-store response")
	}
}
