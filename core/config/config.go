package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gogf/gf/v2/container/gvar"
	"github.com/gogf/gf/v2/frame/g"

	dscommon "github.com/Malowking/dsquery/dataset/common"
)

// getter 读取配置项，未配置时返回默认值
type getter func(key string, def any) *gvar.Var

func cfgGetter(ctx context.Context) getter {
	return func(key string, def any) *gvar.Var {
		return g.Cfg().MustGet(ctx, key, def)
	}
}

// ValidateConfiguration validates all required configuration items
func ValidateConfiguration(ctx context.Context) error {
	missing, warnings := validate(cfgGetter(ctx))

	if len(warnings) > 0 {
		g.Log().Warningf(ctx, "Configuration warnings:\n- %s", strings.Join(warnings, "\n- "))
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration items:\n- %s\n\nPlease check your config.yaml file and ensure all required settings are properly configured", strings.Join(missing, "\n- "))
	}

	g.Log().Info(ctx, "✓ All required configuration items are present")
	return nil
}

func validate(get getter) (missing, warnings []string) {
	for _, key := range []string{"database.default.type", "database.default.host", "database.default.port", "database.default.user", "database.default.name"} {
		if get(key, "").String() == "" {
			missing = append(missing, key)
		}
	}

	// 对话模型只用于自然语言查询
	for _, key := range []string{"chat.apiKey", "chat.baseURL", "chat.model"} {
		if get(key, "").String() == "" {
			warnings = append(warnings, key+" is not set, natural language query is disabled")
		}
	}
	if get("redis.enabled", false).Bool() && get("redis.address", "").String() == "" {
		warnings = append(warnings, "redis.address is not set, using localhost:6379")
	}
	return missing, warnings
}

// DatasetConfig 数据集服务配置
type DatasetConfig struct {
	DatasetTTL      time.Duration
	PreviewTTL      time.Duration
	QueryTTL        time.Duration
	CleanupInterval time.Duration
	MaxEntries      int

	SampleSize   int
	QueryTimeout time.Duration
	DefaultLimit int
	MaxLimit     int
}

// LoadDatasetConfig 读取 dataset.* 配置，缺失项使用默认值
func LoadDatasetConfig(ctx context.Context) *DatasetConfig {
	return loadDatasetConfig(cfgGetter(ctx))
}

func loadDatasetConfig(get getter) *DatasetConfig {
	c := &DatasetConfig{
		DatasetTTL:      get("dataset.cache.datasetTTL", dscommon.DatasetCacheTTL).Duration(),
		PreviewTTL:      get("dataset.cache.previewTTL", dscommon.PreviewCacheTTL).Duration(),
		QueryTTL:        get("dataset.cache.queryTTL", dscommon.QueryCacheTTL).Duration(),
		CleanupInterval: get("dataset.cache.cleanupInterval", time.Minute).Duration(),
		MaxEntries:      get("dataset.cache.maxEntries", 10000).Int(),
		SampleSize:      get("dataset.sampleSize", dscommon.SampleSize).Int(),
		QueryTimeout:    get("dataset.queryTimeout", dscommon.QueryTimeout).Duration(),
		DefaultLimit:    get("dataset.defaultLimit", dscommon.DefaultQueryLimit).Int(),
		MaxLimit:        get("dataset.maxLimit", dscommon.MaxQueryLimit).Int(),
	}
	if c.MaxLimit < c.DefaultLimit {
		c.MaxLimit = c.DefaultLimit
	}
	return c
}
