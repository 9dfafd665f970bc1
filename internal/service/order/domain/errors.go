// internal/service/order/domain/errors.go
package domain

import "errors"

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidOrder          = errors.New("invalid order")
	ErrInvariantViolation    = errors.New("invariant violation")
	ErrPreconditionViolation = errors.New("precondition violation")
	ErrEventRejected         = errors.New("event not accepted")
	ErrRaceTimeout           = errors.New("timed out waiting for expected status")
	ErrVersionConflict       = errors.New("order version conflict")
)

// IsSoft 报告 err 是否属于可以记录后丢弃的类型：
// 订单不存在、事件不被接受（多为重复投递）和竞态等待超时。
func IsSoft(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrEventRejected) ||
		errors.Is(err, ErrRaceTimeout)
}
