package dao

import (
	"context"

	_ "github.com/gogf/gf/contrib/drivers/mysql/v2"
	_ "github.com/gogf/gf/contrib/drivers/pgsql/v2"
	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/os/gctx"
	"gorm.io/gorm"
)

var db *gorm.DB

// InitDB 初始化元数据库连接并迁移表结构
func InitDB(ctx context.Context) error {
	var err error
	db, err = initDatabase(ctx)
	return err
}

// GetDB 获取数据库实例
func GetDB() *gorm.DB {
	if db == nil {
		g.Log().Fatal(gctx.New(), "database connection not initialized")
	}
	return db
}

// CloseDB 关闭数据库连接
func CloseDB(ctx context.Context) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	g.Log().Info(ctx, "Closing metadata database connection")
	db = nil
	return sqlDB.Close()
}
