package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/pkg/schema"
)

var (
	ErrUnsupportedDBType = errors.New("不支持的数据库类型")
	ErrPoolClosed        = errors.New("连接池已关闭")
)

// Config 数据源连接配置
type Config struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	DBType   string `json:"db_type"` // postgresql, mysql, sqlserver, sqlite
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"-"`
	SSLMode  string `json:"ssl_mode"` // disable, require
	Path     string `json:"path"`     // sqlite 文件路径
}

// Validate checks the fields required by the configured database type.
func (c *Config) Validate() error {
	switch c.DBType {
	case common.DBTypePostgreSQL, common.DBTypeMySQL, common.DBTypeSQLServer:
		if c.Host == "" || c.Database == "" {
			return fmt.Errorf("%s 数据源需要 host 与 database", c.DBType)
		}
	case common.DBTypeSQLite:
		if c.Path == "" && c.Database == "" {
			return fmt.Errorf("sqlite 数据源需要 path")
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDBType, c.DBType)
	}
	return nil
}

// fingerprint 连接参数摘要，参数变化后需要重建连接
func (c *Config) fingerprint() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%s", c.DBType, c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode, c.Path)
}

// Result 查询结果
type Result struct {
	Data    []map[string]any
	Columns []schema.ColumnMeta
	Total   int
}

// Pool 按数据源复用连接，实现 SQL 执行适配器
type Pool struct {
	mu         sync.Mutex
	connectors map[string]*pooledConnector
	closed     bool
}

type pooledConnector struct {
	fingerprint string
	connector   *Connector
}

// NewPool 创建连接池
func NewPool() *Pool {
	return &Pool{connectors: make(map[string]*pooledConnector)}
}

// Execute runs sql with bound args against the datasource described by cfg.
func (p *Pool) Execute(ctx context.Context, cfg *Config, sql string, args []any) (*Result, error) {
	conn, err := p.get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return conn.Query(ctx, sql, args...)
}

// Ping opens (or reuses) the connection for cfg and checks it is alive.
func (p *Pool) Ping(ctx context.Context, cfg *Config) error {
	conn, err := p.get(ctx, cfg)
	if err != nil {
		return err
	}
	return conn.Ping(ctx)
}

// Evict closes and forgets the connection of datasource id.
func (p *Pool) Evict(id string) {
	p.mu.Lock()
	pc, ok := p.connectors[id]
	delete(p.connectors, id)
	p.mu.Unlock()

	if ok {
		if err := pc.connector.Close(); err != nil {
			g.Log().Warningf(context.Background(), "关闭数据源连接失败 %s: %v", id, err)
		}
	}
}

// Close closes every pooled connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	connectors := p.connectors
	p.connectors = make(map[string]*pooledConnector)
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, pc := range connectors {
		if err := pc.connector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pool) get(ctx context.Context, cfg *Config) (*Connector, error) {
	if cfg == nil {
		return nil, errors.New("数据源配置为空")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	key := cfg.ID
	if key == "" {
		key = cfg.fingerprint()
	}
	fp := cfg.fingerprint()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	if pc, ok := p.connectors[key]; ok {
		if pc.fingerprint == fp {
			return pc.connector, nil
		}
		// 配置已变化，丢弃旧连接
		_ = pc.connector.Close()
		delete(p.connectors, key)
	}

	conn := NewConnector(cfg)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	p.connectors[key] = &pooledConnector{fingerprint: fp, connector: conn}
	g.Log().Debugf(ctx, "数据源连接已建立: id=%s, type=%s", cfg.ID, cfg.DBType)
	return conn, nil
}
