package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
)

const (
	BackendMemory    = "memory"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
)

type StoreConfig struct {
	Backend  string
	DataDir  string
	MongoURI string
	MongoDB  string
	Firebase *firebase.App
}

// OpenModerationStore connects the configured backend. The returned close
// function is never nil.
func OpenModerationStore(ctx context.Context, cfg StoreConfig) (ModerationStore, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Backend {
	case BackendMemory, "":
		if cfg.DataDir == "" {
			return NewMemoryModerationStore(), noop, nil
		}
		s, err := NewPersistentModerationStore(cfg.DataDir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, noop, fmt.Errorf("MONGO_URI is required for the %s backend", BackendMongo)
		}
		s, err := NewMongoModerationStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendFirestore:
		if cfg.Firebase == nil {
			return nil, noop, fmt.Errorf("firebase app is required for the %s backend", BackendFirestore)
		}
		s, err := NewFirestoreModerationStore(ctx, cfg.Firebase)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
