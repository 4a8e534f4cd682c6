package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// unreachableClient 指向无服务的端口，用于验证错误透传
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestTaskCacheKey(t *testing.T) {
	tc := NewTaskCache(nil)
	assert.Equal(t, "dataset:analysis:ds1", tc.key("ds1"))
	assert.Equal(t, 2*time.Hour, tc.ttl)
}

func TestTaskCacheRedisUnavailable(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	tc := NewTaskCache(client)
	ctx := context.Background()

	err := tc.Start(ctx, "ds1")
	assert.ErrorContains(t, err, "save task to redis failed")

	_, err = tc.GetTask(ctx, "ds1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTaskNotFound)

	assert.Error(t, tc.MarkSuccess(ctx, "ds1"))
}
