// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是所有服务共用的配置结构，按模块分段。
type Config struct {
	App       AppConfig       `yaml:"app"`
	Infra     InfraConfig     `yaml:"infra"`
	Order     OrderConfig     `yaml:"order"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type InfraConfig struct {
	Kafka     KafkaConfig     `yaml:"kafka"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type KafkaConfig struct {
	Brokers       string `yaml:"brokers"`
	ConsumerGroup string `yaml:"consumer_group"`
	Workers       int    `yaml:"workers"`
}

type MySQLConfig struct {
	// DSN 非空时直接使用，否则由下面的字段拼装
	DSN          string        `yaml:"dsn"`
	Addr         string        `yaml:"addr"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Database     string        `yaml:"database"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnMaxLife  time.Duration `yaml:"conn_max_life"`
	AutoMigrate  bool          `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Addrs    string `yaml:"addrs"`
	Password string `yaml:"password"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	LockRoot       string        `yaml:"lock_root"`
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

// OrderConfig 控制订单编排的竞态处理和并发策略。
type OrderConfig struct {
	// Store: memory | mysql
	Store         string        `yaml:"store"`
	AwaitInterval time.Duration `yaml:"await_interval"`
	AwaitAttempts int           `yaml:"await_attempts"`
	// StrictRace 为 true 时等待超时直接返回错误，否则记录日志后继续处理
	StrictRace      bool `yaml:"strict_race"`
	ConflictRetries int  `yaml:"conflict_retries"`
	// LockBackend: none | local | redis | zookeeper
	LockBackend             string        `yaml:"lock_backend"`
	LockTTL                 time.Duration `yaml:"lock_ttl"`
	LockTimeout             time.Duration `yaml:"lock_timeout"`
	NotifyValidationFailure bool          `yaml:"notify_validation_failure"`
}

// SimulatorConfig 是 CEL 表达式，变量见 simulator 包。
type SimulatorConfig struct {
	ValidateRespond  string `yaml:"validate_respond"`
	Valid            string `yaml:"valid"`
	AllocateRespond  string `yaml:"allocate_respond"`
	AllocationError  string `yaml:"allocation_error"`
	PendingInventory string `yaml:"pending_inventory"`
}

// DefaultConfig 返回本地开发环境可直接使用的配置。
func DefaultConfig() Config {
	return Config{
		App: AppConfig{Name: "order-service", Port: 8080, LogLevel: "info"},
		Infra: InfraConfig{
			Kafka:     KafkaConfig{Brokers: "localhost:9092", ConsumerGroup: "order-service", Workers: 4},
			MySQL:     MySQLConfig{Addr: "localhost:3306", User: "root", Database: "beerorder", MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLife: time.Hour},
			Redis:     RedisConfig{Addrs: "localhost:6379"},
			Zookeeper: ZookeeperConfig{Servers: "localhost:2181", SessionTimeout: 10 * time.Second, LockRoot: "/beerorder_locks"},
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces", SampleRatio: 1},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Order: OrderConfig{
			Store:                   "memory",
			AwaitInterval:           100 * time.Millisecond,
			AwaitAttempts:           50,
			ConflictRetries:         3,
			LockBackend:             "local",
			LockTTL:                 30 * time.Second,
			LockTimeout:             10 * time.Second,
			NotifyValidationFailure: true,
		},
		Simulator: SimulatorConfig{
			ValidateRespond:  `customerRef != "cancel-while-pending-validation"`,
			Valid:            `customerRef != "fail-validation"`,
			AllocateRespond:  `customerRef != "cancel-while-pending-allocation"`,
			AllocationError:  `customerRef == "fail-allocation"`,
			PendingInventory: `customerRef == "partial-allocation"`,
		},
	}
}

var current atomic.Pointer[Config]

// GetCurrentConfig 返回最近一次 LoadConfig 的结果，未加载时返回默认配置。
func GetCurrentConfig() *Config {
	if c := current.Load(); c != nil {
		return c
	}
	c := DefaultConfig()
	return &c
}

// LoadConfig 依次应用默认值、YAML 文件和环境变量。path 为空或文件不存在时跳过文件。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	current.Store(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	setString(&cfg.Infra.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&cfg.Infra.MySQL.DSN, "MYSQL_DSN")
	setString(&cfg.Infra.Redis.Addrs, "REDIS_ADDR")
	setString(&cfg.Infra.Jaeger.Endpoint, "JAEGER_ENDPOINT")
	setString(&cfg.Infra.Zookeeper.Servers, "ZK_SERVERS")
	setString(&cfg.Infra.Nacos.ServerAddrs, "NACOS_SERVER_ADDRS")
	setString(&cfg.Infra.Nacos.Namespace, "NACOS_NAMESPACE")
	setString(&cfg.Infra.Nacos.Group, "NACOS_GROUP")
	setString(&cfg.Order.Store, "ORDER_STORE")
	setString(&cfg.Order.LockBackend, "ORDER_LOCK_BACKEND")

	if v, ok := os.LookupEnv("HTTP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_PORT %q: %w", v, err)
		}
		cfg.App.Port = port
	}
	if v, ok := os.LookupEnv("NACOS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid NACOS_ENABLED %q: %w", v, err)
		}
		cfg.Infra.Nacos.Enabled = enabled
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

// Validate 检查不能靠默认值兜底的配置项。
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid app.port %d", c.App.Port)
	}
	switch c.Order.Store {
	case "memory", "mysql":
	default:
		return fmt.Errorf("unknown order.store %q", c.Order.Store)
	}
	switch c.Order.LockBackend {
	case "none", "local", "redis", "zookeeper":
	default:
		return fmt.Errorf("unknown order.lock_backend %q", c.Order.LockBackend)
	}
	if c.Order.LockBackend != "none" && c.Order.LockTimeout <= 0 {
		return fmt.Errorf("order.lock_timeout must be positive when lock_backend is %q", c.Order.LockBackend)
	}
	if c.Order.AwaitAttempts < 0 || c.Order.AwaitInterval < 0 {
		return fmt.Errorf("order await settings must not be negative")
	}
	if c.Order.ConflictRetries < 0 {
		return fmt.Errorf("order.conflict_retries must not be negative")
	}
	return nil
}

// getEnv 从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
