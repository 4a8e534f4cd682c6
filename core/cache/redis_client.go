package cache

import (
	"context"
	"time"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/redis/go-redis/v9"
)

var (
	rdb *redis.Client
)

// InitRedis 初始化Redis客户端；redis.enabled 为 false 时跳过，GetRedisClient 返回 nil
func InitRedis(ctx context.Context) error {
	if !g.Cfg().MustGet(ctx, "redis.enabled", false).Bool() {
		g.Log().Info(ctx, "Redis disabled, cross-instance invalidation and analysis tracking are off")
		return nil
	}

	address := g.Cfg().MustGet(ctx, "redis.address", "localhost:6379").String()
	db := g.Cfg().MustGet(ctx, "redis.db", 0).Int()

	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     g.Cfg().MustGet(ctx, "redis.password", "").String(),
		DB:           db,
		MaxRetries:   g.Cfg().MustGet(ctx, "redis.maxRetries", 3).Int(),
		PoolSize:     g.Cfg().MustGet(ctx, "redis.poolSize", 10).Int(),
		MinIdleConns: g.Cfg().MustGet(ctx, "redis.minIdleConns", 2).Int(),
		DialTimeout:  g.Cfg().MustGet(ctx, "redis.dialTimeout", 5*time.Second).Duration(),
	})

	if err := client.Ping(ctx).Err(); err != nil {
		g.Log().Errorf(ctx, "Redis connection failed: %v", err)
		_ = client.Close()
		return err
	}

	rdb = client
	g.Log().Infof(ctx, "Redis initialized successfully: %s, DB: %d", address, db)
	return nil
}

// GetRedisClient 获取Redis客户端，未启用时为 nil
func GetRedisClient() *redis.Client {
	return rdb
}

// CloseRedis 关闭Redis连接
func CloseRedis(ctx context.Context) error {
	if rdb != nil {
		g.Log().Info(ctx, "Closing Redis connection")
		err := rdb.Close()
		rdb = nil
		return err
	}
	return nil
}
