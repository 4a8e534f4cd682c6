package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/pkg/schema"
)

// Connector 单个数据源的 database/sql 连接
type Connector struct {
	config *Config
	db     *sql.DB
}

// NewConnector 创建连接器
func NewConnector(config *Config) *Connector {
	return &Connector{config: config}
}

// Connect 连接数据库
func (c *Connector) Connect(ctx context.Context) error {
	driverName, err := c.driverName()
	if err != nil {
		return err
	}

	c.db, err = sql.Open(driverName, c.buildDSN())
	if err != nil {
		return fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 设置连接池参数
	if c.config.DBType == common.DBTypeSQLite {
		c.db.SetMaxOpenConns(1)
	} else {
		c.db.SetMaxOpenConns(10)
		c.db.SetMaxIdleConns(5)
	}
	c.db.SetConnMaxLifetime(time.Hour)

	if err := c.db.PingContext(ctx); err != nil {
		_ = c.db.Close()
		c.db = nil
		return fmt.Errorf("数据库连接测试失败: %w", err)
	}
	return nil
}

// driverName 数据库类型对应的驱动注册名
func (c *Connector) driverName() (string, error) {
	switch c.config.DBType {
	case common.DBTypePostgreSQL:
		return "postgres", nil // lib/pq
	case common.DBTypeMySQL:
		return "mysql", nil
	case common.DBTypeSQLServer:
		return "sqlserver", nil
	case common.DBTypeSQLite:
		return "sqlite", nil // modernc.org/sqlite
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDBType, c.config.DBType)
}

// buildDSN 构建DSN字符串
func (c *Connector) buildDSN() string {
	cfg := c.config
	switch cfg.DBType {
	case common.DBTypePostgreSQL:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, port, cfg.Username, quoteDSNValue(cfg.Password), cfg.Database, sslMode)

	case common.DBTypeMySQL:
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		mc := mysql.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
		mc.DBName = cfg.Database
		mc.ParseTime = true
		if cfg.SSLMode != "" && cfg.SSLMode != "disable" {
			mc.TLSConfig = "true"
		}
		return mc.FormatDSN()

	case common.DBTypeSQLServer:
		port := cfg.Port
		if port == 0 {
			port = 1433
		}
		query := url.Values{}
		query.Set("database", cfg.Database)
		if cfg.SSLMode == "disable" {
			query.Set("encrypt", "disable")
		}
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
			RawQuery: query.Encode(),
		}
		return u.String()

	case common.DBTypeSQLite:
		if cfg.Path != "" {
			return cfg.Path
		}
		return cfg.Database
	}
	return ""
}

// quoteDSNValue lib/pq 的 key=value 形式中，含空格或引号的值需要加引号
func quoteDSNValue(v string) string {
	if v == "" || strings.ContainsAny(v, ` '\`) {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `'`, `\'`)
		return "'" + v + "'"
	}
	return v
}

// Close 关闭连接
func (c *Connector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping 测试连接
func (c *Connector) Ping(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("数据源未连接")
	}
	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("测试查询失败: %w", err)
	}
	return nil
}

// Query 执行参数化查询，[]byte 统一转为 string
func (c *Connector) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	if c.db == nil {
		return nil, fmt.Errorf("数据源未连接")
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("执行查询失败: %w", err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("获取列信息失败: %w", err)
	}

	result := &Result{
		Data:    make([]map[string]any, 0),
		Columns: make([]schema.ColumnMeta, len(columnTypes)),
	}
	for i, ct := range columnTypes {
		nullable, ok := ct.Nullable()
		result.Columns[i] = schema.ColumnMeta{
			Name:     ct.Name(),
			Type:     strings.ToLower(ct.DatabaseTypeName()),
			Nullable: nullable || !ok,
		}
	}

	for rows.Next() {
		values := make([]any, len(columnTypes))
		valuePtrs := make([]any, len(columnTypes))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("扫描行数据失败: %w", err)
		}

		row := make(map[string]any, len(columnTypes))
		for i, col := range result.Columns {
			if b, ok := values[i].([]byte); ok {
				row[col.Name] = string(b)
			} else {
				row[col.Name] = values[i]
			}
		}
		result.Data = append(result.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("读取结果失败: %w", err)
	}

	result.Total = len(result.Data)
	return result, nil
}
