package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/config"
	"github.com/eventsphere/backend/internal/handlers"
	appMiddleware "github.com/eventsphere/backend/internal/middleware"
	"github.com/eventsphere/backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	configureLogging(cfg.LogLevel)

	ctx := context.Background()

	var app *firebase.App
	if cfg.NeedsFirebase() {
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

	actions := services.NewModerationActions(store, cfg.AutoBanReportThreshold, cfg.AdminEmails)

	routerCfg := handlers.RouterConfig{
		Actions:        actions,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}
	switch cfg.Auth.Mode {
	case "jwt":
		operators := services.NewOperatorService()
		if cfg.Auth.OperatorEmail != "" {
			operators.Add(services.Operator{
				Email:        cfg.Auth.OperatorEmail,
				PasswordHash: cfg.Auth.OperatorPasswordHash,
			})
		}
		routerCfg.Authenticate = appMiddleware.JWTAuth(cfg.Auth.JWTSecret)
		routerCfg.AuthHandler = handlers.NewAuthHandler(operators, cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration)
	default:
		authClient, err := appMiddleware.NewFirebaseAuthClient(ctx, app)
		if err != nil {
			log.WithError(err).Warn("Firebase Auth unavailable, authenticated routes will return 503")
			routerCfg.Authenticate = appMiddleware.FirebaseAuth(nil)
		} else {
			routerCfg.Authenticate = appMiddleware.FirebaseAuth(authClient)
		}
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           handlers.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"addr":   cfg.ServerAddress,
			"store":  cfg.Store.Backend,
			"auth":   cfg.Auth.Mode,
			"admins": len(cfg.AdminEmails),
		}).Info("Eventsphere moderation API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	if err := closeStore(shutdownCtx); err != nil {
		log.WithError(err).Warn("failed to close store")
	}
}

func configureLogging(level string) {
	log.SetFormatter(&log.JSONFormatter{})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
