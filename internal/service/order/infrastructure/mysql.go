// internal/service/order/infrastructure/mysql.go
package infrastructure

import (
	"fmt"
	"time"

	"beerorder/internal/pkg/bootstrap"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// BuildDSN 优先使用显式配置的 DSN，否则由各字段拼装。
func BuildDSN(cfg bootstrap.MySQLConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Addr
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// OpenMySQL 打开连接池，并按配置执行建表。
func OpenMySQL(cfg bootstrap.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(BuildDSN(cfg)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLife)
	}

	if cfg.AutoMigrate {
		if err := NewGormOrderRepository(db).AutoMigrate(); err != nil {
			return nil, err
		}
	}
	return db, nil
}
