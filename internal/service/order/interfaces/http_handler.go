// internal/service/order/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/pkg/metrics"
	"beerorder/internal/service/order/application"
	"beerorder/internal/service/order/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "order-service"

// OrderService 是 HTTP 层用到的应用服务能力。
type OrderService interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	Pickup(ctx context.Context, orderID string) error
	Cancel(ctx context.Context, orderID string) error
}

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service OrderService
	hub     *StatusHub
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例，hub 为 nil 时不注册 websocket 路由
func NewOrderHandler(service OrderService, hub *StatusHub) *OrderHandler {
	return &OrderHandler{service: service, hub: hub}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders/{id}", h.getOrder)
	mux.HandleFunc("POST /orders/{id}/pickup", h.pickup)
	mux.HandleFunc("POST /orders/{id}/cancel", h.cancel)
	if h.hub != nil {
		mux.HandleFunc("GET /orders/ws", h.hub.ServeWS)
	}
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.CreateOrder")
	defer span.End()

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.service.CreateOrder(ctx, req.ToOrder())
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	writeJSON(w, http.StatusCreated, application.ToOrderResponse(order))
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.GetOrder")
	defer span.End()

	order, err := h.service.GetOrder(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, application.ToOrderResponse(order))
}

func (h *OrderHandler) pickup(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.Pickup")
	defer span.End()

	if err := h.service.Pickup(ctx, r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "http.Cancel")
	defer span.End()

	if err := h.service.Cancel(ctx, r.PathValue("id")); err != nil {
		writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(serviceName).Start(ctx, name)
	if id := r.PathValue("id"); id != "" {
		span.SetAttributes(attribute.String("order.id", id))
	}
	return ctx, span
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrPreconditionViolation), errors.Is(err, domain.ErrEventRejected):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
