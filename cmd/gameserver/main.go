// Package main provides the game server binary that serves the combat API
// over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridfall/internal/config"
	"github.com/cory-johannsen/gridfall/internal/game/catalog"
	"github.com/cory-johannsen/gridfall/internal/game/combat"
	"github.com/cory-johannsen/gridfall/internal/game/dice"
	"github.com/cory-johannsen/gridfall/internal/httpapi"
	"github.com/cory-johannsen/gridfall/internal/observability"
	"github.com/cory-johannsen/gridfall/internal/scripting"
	"github.com/cory-johannsen/gridfall/internal/server"
	"github.com/cory-johannsen/gridfall/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	cryptoSrc := dice.NewCryptoSource()
	diceRoller := dice.NewLoggedRoller(cryptoSrc, logger)

	// Load game content
	catalogStart := time.Now()
	cat, err := catalog.LoadDirectory(cfg.Game.DataDir)
	if err != nil {
		logger.Fatal("loading game content", zap.Error(err))
	}
	logger.Info("game content loaded",
		zap.String("dir", cfg.Game.DataDir),
		zap.Int("spells", len(cat.Spells())),
		zap.Int("abilities", len(cat.Abilities())),
		zap.Duration("elapsed", time.Since(catalogStart)),
	)

	// Connect to PostgreSQL
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	charRepo := postgres.NewCharacterRepository(pool.DB())
	invRepo := postgres.NewInventoryRepository(pool.DB(), cat.HealingConsumables())
	sessionRepo := postgres.NewSessionRepository(pool.DB())
	terrainRepo := postgres.NewTerrainRepository(pool.DB())

	// Initialise scripting engine for status effect tick hooks
	scriptMgr := scripting.NewManager(diceRoller, logger)
	defer scriptMgr.Close()
	if cfg.Game.ScriptsDir != "" {
		scriptStart := time.Now()
		if err := scriptMgr.LoadDirectory(cfg.Game.ScriptsDir, cfg.Game.ScriptInstructionLimit); err != nil {
			logger.Fatal("loading effect hook scripts",
				zap.String("dir", cfg.Game.ScriptsDir), zap.Error(err))
		}
		logger.Info("scripting engine initialized",
			zap.String("dir", cfg.Game.ScriptsDir),
			zap.Duration("elapsed", time.Since(scriptStart)))
	}

	engine := combat.NewEngine(combat.Config{
		Catalog:    cat,
		Source:     cryptoSrc,
		Characters: charRepo,
		Inventory:  invRepo,
		Sessions:   sessionRepo,
		Terrain:    terrainRepo,
		Hooks:      scriptMgr,
		Logger:     logger,
		MaxRounds:  cfg.Game.MaxRounds,
	})

	handler := httpapi.NewHandler(engine, logger)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("http", server.NewHTTPService(cfg.Server, handler.Routes(), logger))

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func() error {
			for {
				time.Sleep(30 * time.Second)
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("game server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("http_addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
