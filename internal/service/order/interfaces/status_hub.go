// internal/service/order/interfaces/status_hub.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"beerorder/internal/pkg/logger"
	"beerorder/internal/service/order/domain"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// StatusUpdate 是推送给 websocket 客户端的消息
type StatusUpdate struct {
	OrderID string        `json:"orderId"`
	From    domain.Status `json:"from"`
	To      domain.Status `json:"to"`
	Event   domain.Event  `json:"event"`
	Version int64         `json:"version"`
	At      time.Time     `json:"at"`
}

type subscriber struct {
	orderID string
	conn    *websocket.Conn
	send    chan []byte
}

// StatusHub 按订单 ID 维护 websocket 订阅，实现 port.StatusObserver。
// 客户端消费过慢时直接丢弃消息，不阻塞状态机。
type StatusHub struct {
	upgrader websocket.Upgrader

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewStatusHub() *StatusHub {
	return &StatusHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// OnStatusChange 在状态落库后被调用。
func (h *StatusHub) OnStatusChange(ctx context.Context, order *domain.Order, from domain.Status, event domain.Event) {
	payload, err := json.Marshal(StatusUpdate{
		OrderID: order.ID,
		From:    from,
		To:      order.Status,
		Event:   event,
		Version: order.Version,
		At:      order.UpdatedAt,
	})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to encode status update")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[order.ID] {
		select {
		case s.send <- payload:
		default:
			logger.Ctx(ctx).Warn().Str(logger.FieldOrderID, order.ID).Msg("status subscriber too slow, update dropped")
		}
	}
}

// ServeWS 处理 /orders/ws?orderId=xxx
func (h *StatusHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	if orderID == "" {
		http.Error(w, "orderId is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s := &subscriber{orderID: orderID, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(s)
	go s.writePump()
	s.readPump()
	h.unregister(s)
}

// Subscribers 返回某个订单当前的订阅数。
func (h *StatusHub) Subscribers(orderID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orderID])
}

// Close 断开所有连接。
func (h *StatusHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for s := range set {
			_ = s.conn.Close()
		}
	}
}

func (h *StatusHub) register(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[s.orderID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[s.orderID] = set
	}
	set[s] = struct{}{}
}

func (h *StatusHub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[s.orderID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.orderID)
	}
	close(s.send)
}

// readPump 只处理 pong 和关闭帧，返回即表示连接已断开。
func (s *subscriber) readPump() {
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
