package cmd

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/dsquery/core/cache"
	"github.com/Malowking/dsquery/core/config"
	"github.com/Malowking/dsquery/internal/dao"
	"github.com/Malowking/dsquery/internal/service"
)

// initAll initializes all components of the application
func initAll(ctx context.Context) {
	// Validate configuration before initializing components
	g.Log().Info(ctx, "Validating application configuration...")
	err := config.ValidateConfiguration(ctx)
	if err != nil {
		g.Log().Fatalf(ctx, "Configuration validation failed:\n%v", err)
	}

	// Initialize metadata database
	err = dao.InitDB(ctx)
	if err != nil {
		g.Log().Fatalf(ctx, "Database connection initialization failed: %v", err)
	}

	// Redis is optional
	err = cache.InitRedis(ctx)
	if err != nil {
		g.Log().Fatalf(ctx, "Redis initialization failed: %v", err)
	}

	// Initialize dataset service
	err = service.Init(ctx)
	if err != nil {
		g.Log().Fatalf(ctx, "Dataset service initialization failed: %v", err)
	}

	g.Log().Info(ctx, "✓ All components initialized successfully")
}

// shutdown releases components in reverse order of initialization
func shutdown(ctx context.Context) {
	if shared := service.Shared(); shared != nil {
		shared.Janitor.Stop()
		shared.Dataset.Wait()
		if err := shared.Pool.Close(); err != nil {
			g.Log().Warningf(ctx, "Closing datasource pool failed: %v", err)
		}
	}
	if err := cache.CloseRedis(ctx); err != nil {
		g.Log().Warningf(ctx, "Closing redis failed: %v", err)
	}
	if err := dao.CloseDB(ctx); err != nil {
		g.Log().Warningf(ctx, "Closing database failed: %v", err)
	}
	g.Log().Info(ctx, "✓ Shutdown complete")
}
