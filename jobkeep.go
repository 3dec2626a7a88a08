package jobkeep

import (
	"net/http"
	"time"

	cfg "github.com/calmstack/jobkeep/internal/config"
	"github.com/calmstack/jobkeep/internal/history"
	"github.com/calmstack/jobkeep/internal/job"
	"github.com/calmstack/jobkeep/internal/metrics"
	"github.com/calmstack/jobkeep/internal/server"
	"github.com/calmstack/jobkeep/internal/service"
	"github.com/calmstack/jobkeep/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = job.Record

type Status = job.Status

type HistorySink = history.Sink

type TerminateResult = job.TerminateResult

type HistoryEvent = history.Event

// Status values.
const (
	StatusPending           = job.StatusPending
	StatusRunning           = job.StatusRunning
	StatusCompleted         = job.StatusCompleted
	StatusFailed            = job.StatusFailed
	StatusTerminated        = job.StatusTerminated
	StatusFailedTermination = job.StatusFailedTermination
	StatusUnknownStale      = job.StatusUnknownStale
)

// Terminate outcomes.
const (
	TerminateDone           = job.TerminateDone
	TerminateAlreadyStopped = job.TerminateAlreadyStopped
	TerminateNotFound       = job.TerminateNotFound
	TerminateError          = job.TerminateError
)

// Service is a thin facade over internal/service.Service.
// It provides a stable public API for embedding.
type Service struct{ inner *service.Service }

func New(dataDir string) (*Service, error) {
	svc, err := service.New(dataDir)
	if err != nil {
		return nil, err
	}
	return &Service{inner: svc}, nil
}

func (s *Service) SetHistorySinks(sinks ...HistorySink) { s.inner.SetHistorySinks(sinks...) }
func (s *Service) Close() error                         { return s.inner.Close() }

func (s *Service) Launch(command []string, trackingLabel string) (string, error) {
	return s.inner.Launch(command, trackingLabel)
}
func (s *Service) Get(id string) *Record  { return s.inner.Get(id) }
func (s *Service) List() []*Record        { return s.inner.List() }
func (s *Service) Terminate(id string) TerminateResult {
	return s.inner.Terminate(id)
}
func (s *Service) FullLog(id string, maxChars int) (string, error) {
	return s.inner.FullLog(id, maxChars)
}
func (s *Service) LogTail(id string, n int) ([]string, error) { return s.inner.LogTail(id, n) }
func (s *Service) PruneCompleted() []string                   { return s.inner.PruneCompleted() }

// Supervisor facade for required runtime dependencies.
type Supervisor struct{ inner *supervisor.Supervisor }

type DependencySpec = supervisor.Spec

type DependencyHandle = supervisor.Handle

func NewSupervisor() *Supervisor { return &Supervisor{inner: supervisor.New()} }

func (s *Supervisor) SetGlobalEnv(kvs []string) { s.inner.SetGlobalEnv(kvs) }
func (s *Supervisor) StartRequired(names []string, configs map[string]DependencySpec) ([]*DependencyHandle, error) {
	return s.inner.StartRequired(names, configs)
}
func (s *Supervisor) StopAll(handles []*DependencyHandle) { s.inner.StopAll(handles) }

func LoadConfig(path string) (*cfg.FileConfig, error) {
	return cfg.Load(path)
}

// NewHistorySink builds a history sink from a DSN. Supported schemes are
// postgres:// and sqlite:// (or a bare file path).
func NewHistorySink(dsn string) (HistorySink, error) {
	return history.NewSQLSinkFromDSN(dsn)
}

// NewHTTPServer starts an HTTP server exposing the job API using the given service.
func NewHTTPServer(addr, basePath string, s *Service) *http.Server {
	return server.NewServer(addr, basePath, s.inner)
}

// NewHTTPHandler returns an embeddable handler for the job API.
func NewHTTPHandler(basePath string, s *Service) http.Handler {
	return server.NewRouter(s.inner, basePath).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It runs in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
