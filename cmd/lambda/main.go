package main

import (
	"context"

	"github.com/ammiranda/category_service/cache"
	"github.com/ammiranda/category_service/config"
	"github.com/ammiranda/category_service/internal/lambda"
	"github.com/ammiranda/category_service/logger"
	"github.com/ammiranda/category_service/repository"
	"github.com/ammiranda/category_service/tree"

	awslambda "github.com/aws/aws-lambda-go/lambda"
)

func main() {
	ctx := context.Background()

	cfgProvider, err := config.NewProviderFromEnv()
	if err != nil {
		panic(err)
	}

	serverCfg, err := config.GetServerConfig(ctx, cfgProvider)
	if err != nil {
		panic(err)
	}
	// Lambda ships logs to CloudWatch, keep them as JSON
	log := logger.New(logger.Config{Env: "lambda", Level: serverCfg.LogLevel})

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

	cacheCfg, err := config.GetCacheConfig(ctx, cfgProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load cache configuration")
	}
	if err := cache.Initialize(cacheCfg); err != nil {
		log.Fatal().Err(err).Str("provider", cacheCfg.Provider).Msg("failed to initialize cache")
	}

	handler := lambda.NewHandler(tree.NewEngine(store, log), log)

	// Start Lambda
	awslambda.Start(handler.Handle)
}
