package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ammiranda/category_service/cache"
	"github.com/ammiranda/category_service/config"
	"github.com/ammiranda/category_service/handlers"
	"github.com/ammiranda/category_service/logger"
	"github.com/ammiranda/category_service/repository"
	"github.com/ammiranda/category_service/tree"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize config provider
	cfgProvider, err := config.NewProviderFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create config provider:", err)
		os.Exit(1)
	}

	serverCfg, err := config.GetServerConfig(ctx, cfgProvider)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid server configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Env:   string(cfgProvider.GetEnvironment()),
		Level: serverCfg.LogLevel,
	})

	// Initialize repository
	dbCfg, err := config.GetDatabaseConfig(ctx, cfgProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load database configuration")
	}
	store, err := repository.NewStore(dbCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create repository")
	}
	if err := store.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Str("driver", dbCfg.Driver).Msg("failed to initialize repository")
	}
	defer store.Cleanup(context.Background())

	// Initialize cache
	cacheCfg, err := config.GetCacheConfig(ctx, cfgProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load cache configuration")
	}
	if err := cache.Initialize(cacheCfg); err != nil {
		log.Fatal().Err(err).Str("provider", cacheCfg.Provider).Msg("failed to initialize cache")
	}

	if cfgProvider.GetEnvironment() != config.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := tree.NewEngine(store, log)
	router := handlers.NewRouter(handlers.NewCategoryHandler(engine, log), log)

	addr := fmt.Sprintf(":%d", serverCfg.Port)
	log.Info().Str("addr", addr).Str("driver", dbCfg.Driver).Str("cache", cacheCfg.Provider).Msg("starting category service")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", addr).Msg("failed to listen")
	}
	srv := &http.Server{Addr: addr, Handler: router}
	if err := handlers.Serve(ctx, srv, ln, handlers.DefaultShutdownTimeout, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}
