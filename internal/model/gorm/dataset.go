package gorm

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dataset 数据集表，来源、字段、统计信息与质量问题以JSON存储
type Dataset struct {
	ID            string         `gorm:"primaryKey;type:char(32);column:id" json:"id"` // 无连字符UUID
	OwnerID       string         `gorm:"type:varchar(64);not null;index;column:owner_id" json:"owner_id"`
	Name          string         `gorm:"type:varchar(255);not null;column:name" json:"name"`
	DisplayName   string         `gorm:"type:varchar(255);column:display_name" json:"display_name"`
	Description   string         `gorm:"type:text;column:description" json:"description"`
	Category      string         `gorm:"type:varchar(100);index;column:category" json:"category"`
	Type          string         `gorm:"type:varchar(20);not null;column:type" json:"type"` // table, sql, view
	Source        datatypes.JSON `gorm:"column:source" json:"source"`
	Fields        datatypes.JSON `gorm:"column:fields" json:"fields"`
	Metadata      datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	QualityScore  int            `gorm:"default:100;column:quality_score" json:"quality_score"`
	QualityIssues datatypes.JSON `gorm:"column:quality_issues" json:"quality_issues"`
	Status        string         `gorm:"type:varchar(20);not null;index;column:status" json:"status"` // pending, active, error
	LastError     string         `gorm:"type:text;column:last_error" json:"last_error"`
	CreateTime    time.Time      `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime    time.Time      `gorm:"column:update_time;autoUpdateTime" json:"update_time"`

	Tags        []DatasetTag        `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"tags"`
	Permissions []DatasetPermission `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE" json:"permissions"`
}

// BeforeCreate 创建前自动生成无连字符UUID
func (d *Dataset) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return nil
}

// TableName 指定表名
func (Dataset) TableName() string {
	return "datasets"
}

// DatasetTag 数据集标签，用于检索与分面统计
type DatasetTag struct {
	DatasetID string `gorm:"primaryKey;type:char(32);column:dataset_id" json:"dataset_id"`
	Tag       string `gorm:"primaryKey;type:varchar(100);index;column:tag" json:"tag"`
}

// TableName 指定表名
func (DatasetTag) TableName() string {
	return "dataset_tags"
}

// DatasetPermission 数据集授权，所有者不在此表
type DatasetPermission struct {
	DatasetID string `gorm:"primaryKey;type:char(32);column:dataset_id" json:"dataset_id"`
	UserID    string `gorm:"primaryKey;type:varchar(64);index;column:user_id" json:"user_id"`
	Role      string `gorm:"type:varchar(20);not null;column:role" json:"role"` // viewer, editor, owner
}

// TableName 指定表名
func (DatasetPermission) TableName() string {
	return "dataset_permissions"
}

// DataSource 数据源连接配置
type DataSource struct {
	ID         string    `gorm:"primaryKey;type:char(32);column:id" json:"id"`
	OwnerID    string    `gorm:"type:varchar(64);not null;index;column:owner_id" json:"owner_id"`
	Name       string    `gorm:"type:varchar(255);not null;column:name" json:"name"`
	DBType     string    `gorm:"type:varchar(20);not null;column:db_type" json:"db_type"` // postgresql, mysql, sqlserver, sqlite
	Host       string    `gorm:"type:varchar(255);column:host" json:"host"`
	Port       int       `gorm:"column:port" json:"port"`
	Database   string    `gorm:"type:varchar(255);column:database_name" json:"database"`
	Username   string    `gorm:"type:varchar(255);column:username" json:"username"`
	Password   string    `gorm:"type:varchar(500);column:password" json:"-"`
	SSLMode    string    `gorm:"type:varchar(20);column:ssl_mode" json:"ssl_mode"`
	Path       string    `gorm:"type:varchar(500);column:path" json:"path"`
	CreateTime time.Time `gorm:"column:create_time;autoCreateTime" json:"create_time"`
	UpdateTime time.Time `gorm:"column:update_time;autoUpdateTime" json:"update_time"`
}

// BeforeCreate 创建前自动生成无连字符UUID
func (ds *DataSource) BeforeCreate(tx *gorm.DB) error {
	if ds.ID == "" {
		ds.ID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return nil
}

// TableName 指定表名
func (DataSource) TableName() string {
	return "datasources"
}
