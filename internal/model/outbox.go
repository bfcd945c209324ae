package model

import (
	"time"

	"github.com/google/uuid"
)

// TaskKind names a deferred side effect of an order.
type TaskKind string

const (
	TaskCouponApply        TaskKind = "coupon_apply"
	TaskNotifyConfirmation TaskKind = "notify_confirmation"
	TaskNotifyShipped      TaskKind = "notify_shipped"
	TaskNotifyDelivered    TaskKind = "notify_delivered"
)

// TaskStatus is the delivery state of an outbox task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// OutboxTask is a persisted side effect awaiting execution.
type OutboxTask struct {
	ID            string     `json:"id" db:"id"`
	OrderID       uuid.UUID  `json:"orderId" db:"order_id"`
	Kind          TaskKind   `json:"kind" db:"kind"`
	Status        TaskStatus `json:"status" db:"status"`
	Attempts      int        `json:"attempts" db:"attempts"`
	NextAttemptAt time.Time  `json:"nextAttemptAt" db:"next_attempt_at"`
	LastError     *string    `json:"lastError,omitempty" db:"last_error"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}
