package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/config"
	appMiddleware "github.com/eventsphere/backend/internal/middleware"
	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/services"
)

// The worker is a Cloud Scheduler target: every POST /sweep runs one auto-ban
// sweep as the system actor.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.SetFormatter(&log.JSONFormatter{})
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	if err := checkWorkerBackend(cfg.Store.Backend); err != nil {
		log.WithError(err).Fatal("unsupported store backend")
	}

	ctx := context.Background()

	var app *firebase.App
	if cfg.Store.Backend == services.BackendFirestore {
		app, err = appMiddleware.NewFirebaseApp(ctx, appMiddleware.FirebaseConfig{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsJSON: cfg.Firebase.CredentialsJSON,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to initialize Firebase")
		}
	}

	store, closeStore, err := services.OpenModerationStore(ctx, services.StoreConfig{
		Backend:  cfg.Store.Backend,
		DataDir:  cfg.Store.DataDir,
		MongoURI: cfg.Store.MongoURI,
		MongoDB:  cfg.Store.MongoDB,
		Firebase: app,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to open moderation store")
	}
	defer closeStore(ctx)

	actions := services.NewModerationActions(store, cfg.AutoBanReportThreshold, cfg.AdminEmails)

	log.WithField("addr", cfg.ServerAddress).Info("moderation-worker listening")
	if err := http.ListenAndServe(cfg.ServerAddress, newWorkerRouter(actions, cfg.RequestTimeout)); err != nil {
		log.WithError(err).Fatal("worker failed")
	}
}

// checkWorkerBackend rejects the memory store. The worker runs in its own
// process, so a snapshot file shared with the API server would be
// overwritten with the worker's stale copy on every sweep.
func checkWorkerBackend(backend string) error {
	switch backend {
	case services.BackendMongo, services.BackendFirestore:
		return nil
	default:
		return fmt.Errorf("moderation-worker needs a shared store, set STORE_BACKEND to %s or %s (got %q)",
			services.BackendMongo, services.BackendFirestore, backend)
	}
}

type sweeper interface {
	SweepAsSystem(ctx context.Context) (*models.SweepResult, error)
}

func newWorkerRouter(s sweeper, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/sweep", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		res, err := s.SweepAsSystem(ctx)
		if err != nil {
			// Non-2xx makes the scheduler retry.
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("sweep failed"))
			return
		}
		logger := log.WithFields(log.Fields{"banned": len(res.Banned), "failures": len(res.Failures)})
		if len(res.Failures) > 0 {
			logger.Warn("sweep finished with failures")
		} else {
			logger.Info("sweep finished")
		}
		writeJSON(w, http.StatusOK, models.NewSuccessResponse(res))
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}
