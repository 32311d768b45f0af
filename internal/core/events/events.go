package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserCreated       = "user.created"
	EventTypePasswordReset     = "user.password_reset"
	EventTypeCheckoutCompleted = "checkout.completed"
)

// UserCreatedEvent carries the issued temporary password to the notifier.
// The password is kept out of Data so it never reaches logs.
type UserCreatedEvent struct {
	BaseEvent
	UserID            int64  `json:"user_id"`
	Email             string `json:"email"`
	FullName          string `json:"full_name"`
	RoleName          string `json:"role_name"`
	TemporaryPassword string `json:"-"`
}

func NewUserCreatedEvent(userID int64, email, fullName, roleName, tempPassword string) *UserCreatedEvent {
	return &UserCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":   userID,
				"email":     email,
				"role_name": roleName,
			},
		},
		UserID:            userID,
		Email:             email,
		FullName:          fullName,
		RoleName:          roleName,
		TemporaryPassword: tempPassword,
	}
}

type PasswordResetEvent struct {
	BaseEvent
	UserID            int64  `json:"user_id"`
	Email             string `json:"email"`
	FullName          string `json:"full_name"`
	TemporaryPassword string `json:"-"`
}

func NewPasswordResetEvent(userID int64, email, fullName, tempPassword string) *PasswordResetEvent {
	return &PasswordResetEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePasswordReset,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id": userID,
				"email":   email,
			},
		},
		UserID:            userID,
		Email:             email,
		FullName:          fullName,
		TemporaryPassword: tempPassword,
	}
}

type CheckoutCompletedEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
	Total   int64 `json:"total"`
	Units   int64 `json:"units"`
}

func NewCheckoutCompletedEvent(orderID, userID, total, units int64) *CheckoutCompletedEvent {
	return &CheckoutCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeCheckoutCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id": orderID,
				"user_id":  userID,
				"total":    total,
				"units":    units,
			},
		},
		OrderID: orderID,
		UserID:  userID,
		Total:   total,
		Units:   units,
	}
}
