// internal/service/order/infrastructure/gorm_model.go
package infrastructure

import "time"

// OrderModel 对应数据库中的 beer_order 表
type OrderModel struct {
	ID          string `gorm:"primaryKey;type:char(36)"`
	Version     int64  `gorm:"not null;default:0"`
	CustomerID  string `gorm:"type:varchar(64);index"`
	CustomerRef string `gorm:"type:varchar(128)"`
	Status      string `gorm:"type:varchar(32);index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// 关联关系
	Lines []OrderLineModel `gorm:"foreignKey:OrderID"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "beer_order"
}

// OrderLineModel 对应数据库中的 beer_order_line 表
type OrderLineModel struct {
	ID                string `gorm:"primaryKey;type:char(36)"`
	OrderID           string `gorm:"type:char(36);index;not null"`
	Position          int    `gorm:"not null"`
	BeerID            string `gorm:"type:varchar(64)"`
	UPC               string `gorm:"column:upc;type:varchar(32)"`
	OrderQuantity     int    `gorm:"not null"`
	QuantityAllocated int    `gorm:"not null;default:0"`
}

func (OrderLineModel) TableName() string {
	return "beer_order_line"
}
