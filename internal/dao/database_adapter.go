package dao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gogf/gf/v2/frame/g"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	gormModel "github.com/Malowking/dsquery/internal/model/gorm"
)

// DBConfig 数据库配置
type DBConfig struct {
	Type    string `json:"type"` // mysql 或 pgsql
	Host    string `json:"host"`
	Port    string `json:"port"`
	User    string `json:"user"`
	Pass    string `json:"pass"`
	Name    string `json:"name"`
	Charset string `json:"charset"` // 仅 MySQL
}

// getDBConfig 复用 GoFrame 的 database.default 配置
func getDBConfig() *DBConfig {
	cfg := g.DB().GetConfig()
	return &DBConfig{
		Type:    cfg.Type,
		Host:    cfg.Host,
		Port:    cfg.Port,
		User:    cfg.User,
		Pass:    cfg.Pass,
		Name:    cfg.Name,
		Charset: cfg.Charset,
	}
}

// buildDSN 构建数据库连接字符串
func buildDSN(config *DBConfig) (string, error) {
	switch config.Type {
	case "mysql":
		charset := config.Charset
		if charset == "" {
			charset = "utf8mb4"
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			config.User, config.Pass, config.Host, config.Port, config.Name, charset), nil
	case "pgsql", "postgresql", "postgres":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Shanghai",
			config.Host, config.User, config.Pass, config.Name, config.Port), nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", config.Type)
	}
}

// gormLogLevel 读取 database.logLevel，默认 warn
func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// initDatabase 根据配置初始化数据库连接
func initDatabase(ctx context.Context) (*gorm.DB, error) {
	config := getDBConfig()
	dsn, err := buildDSN(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build DSN: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(g.Cfg().MustGet(ctx, "database.logLevel", "warn").String())),
	}

	var gdb *gorm.DB
	switch config.Type {
	case "mysql":
		gdb, err = gorm.Open(mysql.Open(dsn), gormConfig)
	default:
		gdb, err = gorm.Open(postgres.Open(dsn), gormConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(g.Cfg().MustGet(ctx, "database.maxIdleConns", 10).Int())
	sqlDB.SetMaxOpenConns(g.Cfg().MustGet(ctx, "database.maxOpenConns", 100).Int())
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err = gormModel.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("failed to migrate database tables: %w", err)
	}
	g.Log().Infof(ctx, "Metadata database initialized: %s %s:%s/%s", config.Type, config.Host, config.Port, config.Name)
	return gdb, nil
}
