// Package app wires configuration, storage and services into one runtime.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"logicforge/internal/ai"
	"logicforge/internal/config"
	"logicforge/internal/db"
	"logicforge/internal/engine"
	"logicforge/internal/logging"
	"logicforge/internal/metrics"
	"logicforge/internal/migrate"
	"logicforge/internal/search"
	"logicforge/internal/server"
)

// Options select the workspace and let callers layer overrides over the file config.
type Options struct {
	Workspace  string
	ConfigPath string
	Override   func(*config.Config)
	Logger     *zap.Logger
}

// Runtime holds every long-lived service of a LogicForge process.
type Runtime struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *sql.DB
	Metrics   *metrics.Metrics
	Engine    engine.Engine
	Search    *search.Chain
	Assistant *ai.Assistant
}

// Open loads config, opens and migrates the workspace database and builds the services.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	if _, err := db.EnsureWorkspace(opts.Workspace); err != nil {
		return nil, err
	}
	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = config.Path(opts.Workspace)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if opts.Override != nil {
		opts.Override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		if logger, err = logging.New(cfg.Logging); err != nil {
			return nil, err
		}
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Debug("database ready", zap.Int("schema_version", version))

	m := metrics.New()
	e := engine.New(conn, cfg, logger, m)
	timeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		DB:        conn,
		Metrics:   m,
		Engine:    e,
		Search:    search.NewChain(ai.NewEmbedder(cfg.AI), e.Repo, cfg.AI.EmbeddingDimensions, timeout, logger, m),
		Assistant: ai.NewAssistant(ai.NewGenerator(cfg.AI), cfg.AI, logger, m),
	}, nil
}

// Handler builds the HTTP API over the runtime's services.
func (r *Runtime) Handler() (http.Handler, error) {
	return server.New(server.Config{
		Engine:      r.Engine,
		Search:      r.Search,
		Assistant:   r.Assistant,
		Metrics:     r.Metrics,
		Logger:      r.Logger,
		BasePath:    r.Config.Server.BasePath,
		CORSOrigins: r.Config.Server.CORSOrigins,
		Auth: server.AuthConfig{
			JWTSecret:             r.Config.Server.JWTSecret,
			AllowLegacyUserHeader: r.Config.Server.AllowLegacyUserHeader,
			DevAuth:               r.Config.Server.DevAuth,
		},
	})
}

func (r *Runtime) Close() error {
	_ = r.Logger.Sync()
	return r.DB.Close()
}
