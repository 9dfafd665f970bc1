// cmd/inventory-simulator/main.go
package main

import (
	"context"
	"fmt"
	"net/http"

	"beerorder/internal/pkg/bootstrap"
	"beerorder/internal/pkg/logger"
	"beerorder/internal/pkg/mq"
	"beerorder/internal/service/simulator"

	"go.opentelemetry.io/otel"
)

const serviceName = "inventory-simulator"

// main 启动一个模拟的校验服务 + 库存服务，按 simulator 段的 CEL 规则回包，用于本地联调。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             8082,
		RegisterHandlers: wire,
	})
}

func wire(app bootstrap.AppCtx) (func(ctx context.Context), error) {
	cfg := app.Config
	rules, err := simulator.CompileRules(cfg.Simulator)
	if err != nil {
		return nil, err
	}

	brokers := mq.SplitBrokers(cfg.Infra.Kafka.Brokers)
	writer := mq.NewKafkaWriter(brokers, "")
	listener := simulator.NewListener(simulator.New(rules), mq.NewJSONPublisher(writer))
	tracer := otel.Tracer(serviceName)

	var consumers []*mq.Consumer
	cleanup := func(ctx context.Context) {
		for _, c := range consumers {
			c.Stop(ctx)
		}
		if err := writer.Close(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to close kafka writer")
		}
	}

	for channel, handler := range listener.Handlers() {
		topic := string(channel)
		c := mq.NewConsumer(topic, mq.NewKafkaReader(brokers, topic, serviceName), handler,
			mq.WithWorkers(cfg.Infra.Kafka.Workers),
			mq.WithTracer(tracer),
		)
		if err := c.Start(app.Ctx); err != nil {
			cleanup(context.Background())
			return nil, fmt.Errorf("start consumer %s: %w", topic, err)
		}
		consumers = append(consumers, c)
	}

	app.Mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return cleanup, nil
}
