package apreport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/mux"

	"github.com/gordian-engine/alpenglow/ap/apcheck"
)

// HTTPServer serves the collected check and simulation results as JSON,
// for inspecting long verification runs while they are still going.
type HTTPServer struct {
	done chan struct{}
}

// HTTPServerConfig configures the report server.
type HTTPServerConfig struct {
	Listener net.Listener

	Results *ResultCollector
}

// ResultCollector is the concurrency-safe store behind the HTTP server.
// Checkers publish into it as they finish.
type ResultCollector struct {
	mu      sync.Mutex
	run     string
	reports []apcheck.Report
	sims    []SimResult
}

func NewResultCollector(run string) *ResultCollector {
	return &ResultCollector{run: run}
}

func (c *ResultCollector) AddReport(r apcheck.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
}

func (c *ResultCollector) AddSim(s SimResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sims = append(c.sims, s)
}

// Run returns the run name.
func (c *ResultCollector) Run() string {
	return c.run
}

// Snapshot returns copies of the collected results.
func (c *ResultCollector) Snapshot() ([]apcheck.Report, []SimResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reports := make([]apcheck.Report, len(c.reports))
	copy(reports, c.reports)
	sims := make([]SimResult, len(c.sims))
	copy(sims, c.sims)
	return reports, sims
}

func NewHTTPServer(ctx context.Context, log *slog.Logger, cfg HTTPServerConfig) *HTTPServer {
	srv := &http.Server{
		Handler: newMux(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	h := &HTTPServer{
		done: make(chan struct{}),
	}
	go h.serve(log, cfg.Listener, srv)
	go h.waitForShutdown(ctx, srv)

	return h
}

func (h *HTTPServer) Wait() {
	<-h.done
}

func (h *HTTPServer) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-h.done:
		// Serve already returned on its own; nothing to close.
		return
	case <-ctx.Done():
		// The run is over. Results are only read, never mutated,
		// so close immediately rather than draining in-flight requests.
		_ = srv.Close()
	}
}

func (h *HTTPServer) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(h.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("Results server shutting down")
		} else {
			log.Info("Results server shutting down due to error", "err", err)
		}
	}
}

func newMux(log *slog.Logger, cfg HTTPServerConfig) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/run", handleRun(log, cfg)).Methods("GET")
	r.HandleFunc("/checks", handleChecks(log, cfg)).Methods("GET")
	r.HandleFunc("/checks/{name}", handleCheckByName(log, cfg)).Methods("GET")
	r.HandleFunc("/simulations", handleSimulations(log, cfg)).Methods("GET")

	return r
}

func handleRun(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		reports, sims := cfg.Results.Snapshot()
		agg := AggregateReports(reports)

		out := struct {
			Run string `json:"run"`

			Pass         int `json:"pass"`
			Fail         int `json:"fail"`
			Inconclusive int `json:"inconclusive"`

			Simulations int `json:"simulations"`
		}{
			Run:          cfg.Results.Run(),
			Pass:         agg.Pass,
			Fail:         agg.Fail,
			Inconclusive: agg.Inconclusive,
			Simulations:  len(sims),
		}

		if err := json.NewEncoder(w).Encode(out); err != nil {
			log.Warn("Failed to marshal run summary", "err", err)
			return
		}
	}
}

func handleChecks(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		reports, _ := cfg.Results.Snapshot()
		sort.Slice(reports, func(i, j int) bool {
			return reports[i].Name < reports[j].Name
		})

		if err := json.NewEncoder(w).Encode(reports); err != nil {
			log.Warn("Failed to marshal check reports", "err", err)
			return
		}
	}
}

func handleCheckByName(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		name := mux.Vars(req)["name"]

		reports, _ := cfg.Results.Snapshot()
		for _, r := range reports {
			if r.Name != name {
				continue
			}
			if err := json.NewEncoder(w).Encode(r); err != nil {
				log.Warn("Failed to marshal check report", "name", name, "err", err)
			}
			return
		}

		http.Error(w, "no check with name "+name, http.StatusNotFound)
	}
}

func handleSimulations(log *slog.Logger, cfg HTTPServerConfig) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		_, sims := cfg.Results.Snapshot()

		if err := json.NewEncoder(w).Encode(sims); err != nil {
			log.Warn("Failed to marshal simulation results", "err", err)
			return
		}
	}
}
