// cmd/order-service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beerorder/internal/pkg/bootstrap"
	"beerorder/internal/pkg/lock"
	"beerorder/internal/pkg/logger"
	"beerorder/internal/pkg/metrics"
	"beerorder/internal/pkg/mq"
	"beerorder/internal/pkg/redis"
	"beerorder/internal/service/order/application"
	"beerorder/internal/service/order/domain"
	"beerorder/internal/service/order/infrastructure"
	"beerorder/internal/service/order/infrastructure/adapter"
	"beerorder/internal/service/order/interfaces"
	"beerorder/internal/service/order/port"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

const serviceName = "order-service"

// main 是订单服务的组装根：选择存储和锁的实现，接好 Kafka 的收发，然后注册 HTTP 路由。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		RegisterHandlers: wire,
	})
}

func wire(app bootstrap.AppCtx) (func(ctx context.Context), error) {
	cfg := app.Config
	var closers []func(ctx context.Context)
	cleanup := func(ctx context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](ctx)
		}
	}
	fail := func(err error) (func(ctx context.Context), error) {
		cleanup(context.Background())
		return nil, err
	}

	tracer := otel.Tracer(serviceName)
	m := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	// 1. 存储
	repo, err := newRepository(cfg)
	if err != nil {
		return fail(err)
	}

	// 2. 订单锁
	locker, closeLocker, err := newLocker(app.Ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeLocker)

	// 3. 出站：一个不绑定 topic 的 writer，按消息指定 topic
	brokers := mq.SplitBrokers(cfg.Infra.Kafka.Brokers)
	writer := mq.NewKafkaWriter(brokers, "")
	closers = append(closers, func(ctx context.Context) {
		if err := writer.Close(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to close kafka writer")
		}
	})
	publisher := adapter.NewKafkaPublisher(writer, m, tracer)

	// 4. 应用服务
	hub := interfaces.NewStatusHub()
	closers = append(closers, func(context.Context) { hub.Close() })

	opts := []application.Option{
		application.WithConfig(application.Config{
			AwaitInterval:           cfg.Order.AwaitInterval,
			AwaitAttempts:           cfg.Order.AwaitAttempts,
			StrictRace:              cfg.Order.StrictRace,
			ConflictRetries:         cfg.Order.ConflictRetries,
			LockTimeout:             cfg.Order.LockTimeout,
			NotifyValidationFailure: cfg.Order.NotifyValidationFailure,
		}),
		application.WithMetrics(m),
		application.WithTracer(tracer),
		application.WithObservers(hub),
	}
	if locker != nil {
		opts = append(opts, application.WithLocker(locker))
	}
	svc, err := application.NewOrderApplicationService(repo, publisher, opts...)
	if err != nil {
		return fail(err)
	}

	// 5. 入站：三个回包 topic，以及各自的死信 topic
	failures := mq.NewFailureHandler(writer)
	listener := interfaces.NewResponseListener(svc)
	for channel, handler := range listener.Handlers() {
		topic := string(channel)
		consumers := []*mq.Consumer{
			mq.NewConsumer(topic, mq.NewKafkaReader(brokers, topic, cfg.Infra.Kafka.ConsumerGroup), handler,
				mq.WithWorkers(cfg.Infra.Kafka.Workers),
				mq.WithFailureHandler(failures),
				mq.WithSoftError(domain.IsSoft),
				mq.WithTracer(tracer),
				mq.WithObserver(observe(m)),
			),
			mq.NewConsumer(mq.DLTTopic(topic), mq.NewKafkaReader(brokers, mq.DLTTopic(topic), cfg.Infra.Kafka.ConsumerGroup+"-dlt"),
				interfaces.HandleDeadLetter,
				mq.WithWorkers(1),
				mq.WithTracer(tracer),
			),
		}
		for _, c := range consumers {
			if err := c.Start(app.Ctx); err != nil {
				return fail(fmt.Errorf("start consumer %s: %w", c.Topic(), err))
			}
			closers = append(closers, c.Stop)
		}
	}

	// 6. HTTP
	interfaces.NewOrderHandler(svc, hub).RegisterRoutes(app.Mux)

	logger.L().Info().
		Str("store", cfg.Order.Store).
		Str("lock_backend", cfg.Order.LockBackend).
		Bool("strict_race", cfg.Order.StrictRace).
		Msg("✅ order service wired")
	return cleanup, nil
}

func newRepository(cfg *bootstrap.Config) (domain.OrderRepository, error) {
	switch cfg.Order.Store {
	case "mysql":
		db, err := infrastructure.OpenMySQL(cfg.Infra.MySQL)
		if err != nil {
			return nil, err
		}
		return infrastructure.NewGormOrderRepository(db), nil
	default:
		return infrastructure.NewMemoryOrderRepository(), nil
	}
}

func newLocker(ctx context.Context, cfg *bootstrap.Config) (port.OrderLocker, func(ctx context.Context), error) {
	noop := func(context.Context) {}
	switch cfg.Order.LockBackend {
	case "local":
		return lock.NewLocalLocker(), noop, nil
	case "redis":
		client, err := redis.NewClient(ctx, cfg.Infra.Redis.Addrs, cfg.Infra.Redis.Password)
		if err != nil {
			return nil, noop, err
		}
		closeClient := func(ctx context.Context) {
			if err := client.Close(); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("failed to close redis client")
			}
		}
		l, err := lock.NewRedisLocker(ctx, client, "beerorder:lock:", cfg.Order.LockTTL)
		if err != nil {
			closeClient(ctx)
			return nil, noop, err
		}
		return l, closeClient, nil
	case "zookeeper":
		conn, err := lock.NewZookeeperConn(mq.SplitBrokers(cfg.Infra.Zookeeper.Servers), cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return nil, noop, err
		}
		l, err := lock.NewZookeeperLocker(conn, cfg.Infra.Zookeeper.LockRoot)
		if err != nil {
			conn.Close()
			return nil, noop, err
		}
		return l, func(context.Context) { conn.Close() }, nil
	default:
		return nil, noop, nil
	}
}

func observe(m *metrics.OrderMetrics) func(topic string, err error, elapsed time.Duration) {
	return func(topic string, err error, elapsed time.Duration) {
		if errors.Is(err, mq.ErrDeadLetterFailed) {
			m.MessageConsumedResult(topic, metrics.ResultDLTFailed, elapsed.Seconds())
			return
		}
		m.MessageConsumed(topic, err, elapsed.Seconds())
	}
}
