package main

import (
	"log"
	"log/slog"

	"github.com/omirall/mobilitat/internal/auth"
	"github.com/omirall/mobilitat/internal/cache"
	"github.com/omirall/mobilitat/internal/config"
	"github.com/omirall/mobilitat/internal/db"
	"github.com/omirall/mobilitat/internal/domain"
	"github.com/omirall/mobilitat/internal/logging"
	"github.com/omirall/mobilitat/internal/narrative"
	"github.com/omirall/mobilitat/internal/obs"
	"github.com/omirall/mobilitat/internal/remote"
	"github.com/omirall/mobilitat/internal/remote/docstore"
	"github.com/omirall/mobilitat/internal/remote/pg"
	syncsvc "github.com/omirall/mobilitat/internal/sync"
	"github.com/omirall/mobilitat/internal/web"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	obs.Init()

	database, err := db.Open(cfg.CacheDBPath)
	if err != nil {
		logger.Error("failed to open cache database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close cache database", "error", err)
		}
	}()

	cacheStore := cache.New(database, logger)

	remoteStore := newRemoteStore(cfg, logger)
	if remoteStore == nil {
		return
	}

	if cfg.Offline {
		logger.Warn("offline mode enabled, remote store will not be contacted")
	}

	identity := auth.Static{UserID: cfg.TechUserID}
	service := syncsvc.New(cacheStore, remoteStore, cfg.Offline, identity, logger)

	server := web.NewServer(service, newNarrativeGenerator(cfg, logger), logger)

	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func newRemoteStore(cfg *config.Config, logger *slog.Logger) remote.Store {
	defaults := remote.Defaults{
		Location: domain.Location{Lat: cfg.DefaultLat, Lng: cfg.DefaultLng},
	}

	switch cfg.RemoteBackend {
	case "docstore":
		if cfg.DocstoreURL == "" {
			logger.Error("DOCSTORE_URL is required when REMOTE_BACKEND=docstore")
			return nil
		}
		logger.Info("using document store backend", "url", cfg.DocstoreURL)
		return docstore.New(cfg.DocstoreURL, cfg.DocstoreAPIKey, defaults)
	default:
		if cfg.PGDSN == "" {
			logger.Error("PG_DSN is required when REMOTE_BACKEND=pg")
			return nil
		}
		store, err := pg.Open(cfg.PGDSN, defaults)
		if err != nil {
			logger.Error("failed to open postgres backend", "error", err)
			return nil
		}
		logger.Info("using postgres backend")
		return store
	}
}

func newNarrativeGenerator(cfg *config.Config, logger *slog.Logger) narrative.Generator {
	if cfg.AnthropicKey == "" {
		logger.Info("narrative generation disabled, no API key configured")
		return narrative.Disabled{}
	}
	logger.Info("narrative generation enabled", "model", cfg.AnthropicModel)
	return narrative.NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel)
}
