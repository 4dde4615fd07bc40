package serverapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"motido/internal/config"
	"motido/internal/httpmw"
	"motido/internal/observability"
	"motido/internal/score"
	"motido/internal/task"
	"motido/internal/telemetry"
)

type Options struct {
	Config *config.Config
	Logger *observability.Logger
}

// NewHandler assembles the full application: store per the configured
// backend, completion service, telemetry, HTTP routes and middleware.
func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger("motido", nil, observability.ParseLevel(opts.Config.Logging.Level))
	}

	store, err := openStore(opts.Config)
	if err != nil {
		return nil, err
	}

	events := telemetry.NewMemoryRepository()
	scorer := score.NewCalculator(opts.Config.Weights())
	svc := task.NewService(store, scorer, logger.Named("task"), events)
	taskHandler := task.NewHandler(svc)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "motido",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if _, err := store.Snapshot(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ok":    false,
				"error": "task storage unavailable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "motido",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/api/tasks", taskHandler.TasksRoot)
	mux.HandleFunc("/api/tasks/", taskHandler.TasksSub)
	mux.HandleFunc("/api/tags", taskHandler.TagsRoot)
	mux.HandleFunc("/api/projects", taskHandler.ProjectsRoot)
	mux.HandleFunc("/api/events", taskHandler.EventsRoot)

	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(opts.Config); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	return httpmw.Chain(
		mux,
		httpmw.WithAccessLog(logger.Named("http")),
		httpmw.WithRequestID,
		httpmw.WithRecover(logger.Named("http")),
	), nil
}

func openStore(cfg *config.Config) (task.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return task.NewMemoryRepo(), nil
	case "sqlite":
		return task.NewSQLiteRepo(cfg.Storage.SQLitePath)
	case "file":
		return task.NewFileRepo(cfg.Storage.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
