package dao

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gogf/gf/v2/frame/g"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	gormModel "github.com/Malowking/dsquery/internal/model/gorm"
	"github.com/Malowking/dsquery/pkg/schema"
)

// DatasetDAO 数据集数据访问对象
type DatasetDAO struct{}

var Dataset = &DatasetDAO{}

// distinctColumns Distinct 支持的分面字段
var distinctColumns = map[string]string{
	"category": "category",
	"type":     "type",
}

func preloaded(db *gorm.DB) *gorm.DB {
	return db.Preload("Tags").Preload("Permissions")
}

// scoped 按检索条件过滤；UserID 限定为所有者或被授权的数据集
func scoped(db *gorm.DB, f schema.DatasetFilter) *gorm.DB {
	q := db.Model(&gormModel.Dataset{})
	if f.UserID != "" {
		granted := db.Model(&gormModel.DatasetPermission{}).Select("dataset_id").Where("user_id = ?", f.UserID)
		q = q.Where(db.Where("owner_id = ?", f.UserID).Or("id IN (?)", granted))
	}
	if f.Keyword != "" {
		kw := "%" + escapeLike(strings.ToLower(f.Keyword)) + "%"
		q = q.Where(db.Where("LOWER(name) LIKE ?", kw).
			Or("LOWER(display_name) LIKE ?", kw).
			Or("LOWER(description) LIKE ?", kw))
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if len(f.Tags) > 0 {
		tagged := db.Model(&gormModel.DatasetTag{}).Select("dataset_id").Where("tag IN ?", f.Tags)
		q = q.Where("id IN (?)", tagged)
	}
	return q
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

// FindByID 根据ID获取数据集，不存在时返回 nil, nil
func (d *DatasetDAO) FindByID(ctx context.Context, id string) (*schema.Dataset, error) {
	return findDataset(preloaded(GetDB().WithContext(ctx)), id)
}

func findDataset(db *gorm.DB, id string) (*schema.Dataset, error) {
	var m gormModel.Dataset
	if err := db.Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return datasetFromModel(&m)
}

// Find 分页检索，order 形如 "updated_at desc"
func (d *DatasetDAO) Find(ctx context.Context, filter schema.DatasetFilter, order string, skip, limit int) ([]*schema.Dataset, error) {
	db := GetDB().WithContext(ctx)
	var rows []gormModel.Dataset
	err := preloaded(scoped(db, filter)).
		Order(modelOrder(order)).
		Offset(skip).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		g.Log().Errorf(ctx, "检索数据集失败: %v", err)
		return nil, err
	}

	out := make([]*schema.Dataset, 0, len(rows))
	for i := range rows {
		ds, err := datasetFromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

// modelOrder 服务层的排序列映射到表列
func modelOrder(order string) string {
	column, dir, _ := strings.Cut(order, " ")
	switch column {
	case "created_at":
		column = "create_time"
	case "updated_at", "":
		column = "update_time"
	}
	if dir != "asc" {
		dir = "desc"
	}
	return column + " " + dir
}

// Count 统计满足条件的数据集数量
func (d *DatasetDAO) Count(ctx context.Context, filter schema.DatasetFilter) (int64, error) {
	var total int64
	if err := scoped(GetDB().WithContext(ctx), filter).Count(&total).Error; err != nil {
		g.Log().Errorf(ctx, "统计数据集失败: %v", err)
		return 0, err
	}
	return total, nil
}

// Distinct 返回字段的非空去重取值，field 为 category、type 或 tags
func (d *DatasetDAO) Distinct(ctx context.Context, field string, filter schema.DatasetFilter) ([]string, error) {
	db := GetDB().WithContext(ctx)
	var values []string

	var err error
	if field == "tags" {
		ids := scoped(db, filter).Select("id")
		err = db.Model(&gormModel.DatasetTag{}).
			Where("dataset_id IN (?)", ids).
			Distinct("tag").
			Order("tag").
			Pluck("tag", &values).Error
	} else {
		column, ok := distinctColumns[field]
		if !ok {
			return nil, fmt.Errorf("unsupported distinct field: %s", field)
		}
		err = scoped(db, filter).
			Where(column+" <> ''").
			Distinct(column).
			Order(column).
			Pluck(column, &values).Error
	}
	if err != nil {
		g.Log().Errorf(ctx, "统计数据集 %s 失败: %v", field, err)
		return nil, err
	}
	return values, nil
}

// Create 创建数据集及其标签与授权
func (d *DatasetDAO) Create(ctx context.Context, ds *schema.Dataset) error {
	m, err := datasetToModel(ds)
	if err != nil {
		return err
	}
	if err := GetDB().WithContext(ctx).Create(m).Error; err != nil {
		g.Log().Errorf(ctx, "创建数据集失败: %v", err)
		return err
	}
	ds.ID = m.ID
	return nil
}

// FindOneAndUpdate 在事务中应用修改并返回更新后的数据集，不存在时返回 nil, nil
func (d *DatasetDAO) FindOneAndUpdate(ctx context.Context, id string, patch *schema.DatasetPatch) (*schema.Dataset, error) {
	var updated *schema.Dataset
	err := GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := findDataset(preloaded(tx.Clauses(clause.Locking{Strength: "UPDATE"})), id)
		if err != nil || current == nil {
			return err
		}

		patch.Apply(current)
		current.UpdatedAt = time.Now()
		m, err := datasetToModel(current)
		if err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(m).Error; err != nil {
			return err
		}

		if patch.Tags != nil {
			if err := tx.Where("dataset_id = ?", id).Delete(&gormModel.DatasetTag{}).Error; err != nil {
				return err
			}
			if len(m.Tags) > 0 {
				if err := tx.Create(&m.Tags).Error; err != nil {
					return err
				}
			}
		}
		if patch.Permissions != nil {
			if err := tx.Where("dataset_id = ?", id).Delete(&gormModel.DatasetPermission{}).Error; err != nil {
				return err
			}
			if len(m.Permissions) > 0 {
				if err := tx.Create(&m.Permissions).Error; err != nil {
					return err
				}
			}
		}
		updated = current
		return nil
	})
	if err != nil {
		g.Log().Errorf(ctx, "更新数据集失败 %s: %v", id, err)
		return nil, err
	}
	return updated, nil
}

// DeleteByID 删除数据集及其标签与授权
func (d *DatasetDAO) DeleteByID(ctx context.Context, id string) error {
	err := GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_id = ?", id).Delete(&gormModel.DatasetTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("dataset_id = ?", id).Delete(&gormModel.DatasetPermission{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&gormModel.Dataset{}).Error
	})
	if err != nil {
		g.Log().Errorf(ctx, "删除数据集失败 %s: %v", id, err)
		return err
	}
	return nil
}
