package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/user/cipherbench/internal/benchmark"
	"github.com/user/cipherbench/pkg/sysinfo"
)

// Options configure a Server. Base supplies every run setting a request
// leaves out; output and corpus locations always come from Base.
type Options struct {
	Addr      string
	Base      benchmark.Config
	Logger    *slog.Logger
	QueueSize int
}

type Server struct {
	router     *mux.Router
	jobStore   *JobStore
	workerPool *WorkerPool
	sysInfo    *sysinfo.SystemInfo
	upgrader   websocket.Upgrader
	base       benchmark.Config
	addr       string
	logger     *slog.Logger
}

func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sysInfo, err := sysinfo.Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to collect system info: %w", err)
	}

	jobStore := NewJobStore()
	s := &Server{
		router:   mux.NewRouter(),
		jobStore: jobStore,
		sysInfo:  sysInfo,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		base:   opts.Base,
		addr:   opts.Addr,
		logger: opts.Logger,
	}
	s.workerPool = NewWorkerPool(jobStore, opts.QueueSize, opts.Logger)

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/system-info", s.handleSystemInfo).Methods("GET")
	api.HandleFunc("/profiles", s.handleProfiles).Methods("GET")
	api.HandleFunc("/runs", s.handleCreateRun).Methods("POST")
	api.HandleFunc("/runs", s.handleListRuns).Methods("GET")
	api.HandleFunc("/runs/{id}", s.handleGetRun).Methods("GET")
	api.HandleFunc("/runs/{id}/cancel", s.handleCancelRun).Methods("POST")
	api.HandleFunc("/runs/{id}/progress", s.handleRunProgress).Methods("GET")
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then cancels queued and running jobs
// and shuts down.
func (s *Server) Run(ctx context.Context) error {
	s.workerPool.Start()
	defer s.workerPool.Stop()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("cipherbench server starting", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sysInfo)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"profiles": benchmark.AvailableProfiles(),
		"aliases":  []string{"aes", "all"},
	})
}

// jobConfig overlays the request body on the server's base configuration.
func (s *Server) jobConfig(r *http.Request) (benchmark.Config, error) {
	cfg := s.base
	cfg.Profiles = slices.Clone(s.base.Profiles)
	cfg.FileSizes = slices.Clone(s.base.FileSizes)
	cfg.SizeOverrides = maps.Clone(s.base.SizeOverrides)

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return cfg, err
	}
	if len(bytes.TrimSpace(body)) > 0 {
		// Explicit sizes replace the base overrides unless overrides are
		// given too, the same rule the CLI applies to --sizes.
		var present struct {
			FileSizes     json.RawMessage `json:"file_sizes"`
			SizeOverrides json.RawMessage `json:"size_overrides"`
		}
		if err := json.Unmarshal(body, &present); err != nil {
			return cfg, err
		}
		if present.FileSizes != nil || present.SizeOverrides != nil {
			cfg.SizeOverrides = nil
		}
		if err := json.Unmarshal(body, &cfg); err != nil {
			return cfg, err
		}
	}

	cfg.Output = s.base.Output
	cfg.CorpusDir = s.base.CorpusDir
	cfg.ShowProgress = false
	return cfg, cfg.Validate()
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.jobConfig(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := newJob(cfg)
	s.jobStore.Add(job)

	if err := s.workerPool.Submit(job); err != nil {
		s.jobStore.Reject(job, err)
		http.Error(w, "Server is busy, please try again later", http.StatusServiceUnavailable)
		return
	}

	s.logger.Info("run queued", "run_id", job.ID, "profiles", cfg.Profiles)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": job.ID,
		"status": string(job.Status),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobStore.List())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobStore.Get(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := s.jobStore.Get(id)
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if job.Status.Terminal() {
		http.Error(w, "Run already finished", http.StatusConflict)
		return
	}

	s.jobStore.MarkCancelled(id)
	s.workerPool.TerminateJob(id)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  string(StatusCancelled),
		"message": "Run cancellation initiated",
	})
}

// handleRunProgress relays runner updates until the job's progress channel
// is closed, then sends the final job status.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	progress, ok := s.jobStore.Progress(id)
	if !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "run_id", id, "error", err)
		return
	}
	defer conn.Close()

	for {
		select {
		case update, ok := <-progress:
			if !ok {
				job, _ := s.jobStore.Get(id)
				conn.WriteJSON(map[string]any{
					"status":    job.Status,
					"completed": true,
					"error":     job.Error,
				})
				return
			}
			if err := conn.WriteJSON(map[string]any{
				"status":     StatusRunning,
				"completed":  false,
				"state":      update.State,
				"profile":    update.Profile,
				"file_size":  update.FileSize,
				"current":    update.Current,
				"total":      update.Total,
				"percentage": update.Percentage,
			}); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
