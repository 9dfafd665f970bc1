// internal/service/order/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"time"

	"beerorder/internal/service/order/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// AutoMigrate 创建或更新订单相关的表
func (r *GormOrderRepository) AutoMigrate() error {
	return errors.Wrap(r.db.AutoMigrate(&OrderModel{}, &OrderLineModel{}), "auto migrate order tables")
}

// Create 在一个事务里写入订单和订单行
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := ToOrderModel(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrapf(err, "create order %s", order.ID)
	}
	return nil
}

// FindByID 使用 Preload 一并加载订单行
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", id)
		}
		return nil, errors.Wrapf(err, "find order %s", id)
	}
	return ToDomainOrder(&model), nil
}

// Save 以 version 做乐观锁：只有版本号匹配时才更新，订单行只同步分配数量。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	now := order.UpdatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderModel{}).
			Where("id = ? AND version = ?", order.ID, order.Version).
			Updates(map[string]interface{}{
				"status":       string(order.Status),
				"customer_ref": order.CustomerRef,
				"version":      gorm.Expr("version + 1"),
				"updated_at":   now,
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "update order %s", order.ID)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&OrderModel{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
				return errors.Wrapf(err, "check order %s", order.ID)
			}
			if count == 0 {
				return errors.Wrapf(domain.ErrOrderNotFound, "order %s", order.ID)
			}
			return errors.Wrapf(domain.ErrVersionConflict, "order %s version %d", order.ID, order.Version)
		}

		for _, l := range order.Lines {
			err := tx.Model(&OrderLineModel{}).
				Where("id = ? AND order_id = ?", l.ID, order.ID).
				Update("quantity_allocated", l.QuantityAllocated).Error
			if err != nil {
				return errors.Wrapf(err, "update line %s of order %s", l.ID, order.ID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	order.Version++
	return nil
}
