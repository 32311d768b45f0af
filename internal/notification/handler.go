package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/inventory-checkout/internal/core/events"
	"github.com/frahmantamala/inventory-checkout/internal/user"
)

// Recipients resolves the buyer of an order to a mail address.
type Recipients interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

type EventHandler struct {
	mailer     Mailer
	recipients Recipients
	loginURL   string
	logger     *slog.Logger
}

// NewEventHandler builds the handler. recipients may be nil, in which case
// checkout receipts are not subscribed.
func NewEventHandler(mailer Mailer, recipients Recipients, loginURL string, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		mailer:     mailer,
		recipients: recipients,
		loginURL:   loginURL,
		logger:     logger,
	}
}

func (h *EventHandler) HandleUserCreated(ctx context.Context, event events.Event) error {
	ev, ok := event.(*events.UserCreatedEvent)
	if !ok {
		h.logger.Error("invalid event type for user created handler", "event_type", event.EventType())
		return fmt.Errorf("expected UserCreatedEvent, got %T", event)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", ev.FullName)
	fmt.Fprintf(&b, "An account with the role %q has been created for you.\n", ev.RoleName)
	fmt.Fprintf(&b, "Temporary password: %s\n\n", ev.TemporaryPassword)
	b.WriteString("You will be asked to choose a new password when you first sign in.\n")
	h.writeLoginLine(&b)

	return h.send(ctx, ev.EventID(), Message{
		To:       ev.Email,
		Subject:  "Your account is ready",
		TextBody: b.String(),
		Tag:      "welcome",
	})
}

func (h *EventHandler) HandlePasswordReset(ctx context.Context, event events.Event) error {
	ev, ok := event.(*events.PasswordResetEvent)
	if !ok {
		h.logger.Error("invalid event type for password reset handler", "event_type", event.EventType())
		return fmt.Errorf("expected PasswordResetEvent, got %T", event)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", ev.FullName)
	b.WriteString("Your password has been reset.\n")
	fmt.Fprintf(&b, "Temporary password: %s\n\n", ev.TemporaryPassword)
	b.WriteString("Sign in with it and choose a new password right away.\n")
	h.writeLoginLine(&b)

	return h.send(ctx, ev.EventID(), Message{
		To:       ev.Email,
		Subject:  "Your password has been reset",
		TextBody: b.String(),
		Tag:      "password-reset",
	})
}

func (h *EventHandler) HandleCheckoutCompleted(ctx context.Context, event events.Event) error {
	ev, ok := event.(*events.CheckoutCompletedEvent)
	if !ok {
		h.logger.Error("invalid event type for checkout completed handler", "event_type", event.EventType())
		return fmt.Errorf("expected CheckoutCompletedEvent, got %T", event)
	}
	if h.recipients == nil {
		return errors.New("no recipient lookup configured for checkout receipts")
	}

	buyer, err := h.recipients.GetByID(ctx, ev.UserID)
	if err != nil {
		h.logger.Error("failed to resolve receipt recipient",
			"error", err,
			"order_id", ev.OrderID,
			"user_id", ev.UserID)
		return fmt.Errorf("resolve buyer %d: %w", ev.UserID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", buyer.FullName)
	fmt.Fprintf(&b, "Order #%d is complete.\n", ev.OrderID)
	fmt.Fprintf(&b, "Units: %d\n", ev.Units)
	fmt.Fprintf(&b, "Total: %s\n", formatMinorUnits(ev.Total))

	return h.send(ctx, ev.EventID(), Message{
		To:       buyer.Email,
		Subject:  fmt.Sprintf("Receipt for order #%d", ev.OrderID),
		TextBody: b.String(),
		Tag:      "receipt",
	})
}

// formatMinorUnits renders 1234 as "12.34".
func formatMinorUnits(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (h *EventHandler) writeLoginLine(b *strings.Builder) {
	if h.loginURL != "" {
		fmt.Fprintf(b, "Sign in at %s\n", h.loginURL)
	}
}

func (h *EventHandler) send(ctx context.Context, eventID string, msg Message) error {
	if err := h.mailer.Send(ctx, msg); err != nil {
		h.logger.Error("failed to deliver notification",
			"error", err,
			"tag", msg.Tag,
			"to", msg.To,
			"event_id", eventID)
		return fmt.Errorf("deliver %s email: %w", msg.Tag, err)
	}
	h.logger.Info("notification delivered", "tag", msg.Tag, "to", msg.To, "event_id", eventID)
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeUserCreated, h.HandleUserCreated)
	eventBus.Subscribe(events.EventTypePasswordReset, h.HandlePasswordReset)
	handlers := []string{events.EventTypeUserCreated, events.EventTypePasswordReset}

	if h.recipients != nil {
		eventBus.Subscribe(events.EventTypeCheckoutCompleted, h.HandleCheckoutCompleted)
		handlers = append(handlers, events.EventTypeCheckoutCompleted)
	}

	h.logger.Info("notification event handlers registered", "handlers", handlers)
}
