package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/inventory-checkout/internal/core/events"
	"github.com/frahmantamala/inventory-checkout/internal/notification"
	"github.com/frahmantamala/inventory-checkout/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification commands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test welcome email through the configured mail provider",
	Long:  `Publish a synthetic user.created event and deliver it through the same bus, handler and mailer the server uses.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendTestNotification(cmd.Context())
	},
}

var notifyTo string

func init() {
	notifyTestCmd.Flags().StringVar(&notifyTo, "to", "", "recipient address")
	_ = notifyTestCmd.MarkFlagRequired("to")
	notifyCmd.AddCommand(notifyTestCmd)
}

func sendTestNotification(ctx context.Context) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	lg := logger.LoggerWrapper()

	mailer, err := notification.NewMailer(cfg.Mail, lg)
	if err != nil {
		return err
	}
	// One attempt, sent synchronously, so failures surface as the exit status.
	bus := events.NewEventBus(lg)
	notification.NewEventHandler(mailer, nil, cfg.Mail.LoginURL, lg).RegisterEventHandlers(bus)

	ev := events.NewUserCreatedEvent(0, notifyTo, "Test Recipient", "Cashier", "T3st-"+uuid.NewString()[:8])
	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := bus.PublishSync(sendCtx, ev); err != nil {
		return fmt.Errorf("send test notification: %w", err)
	}
	lg.Info("test notification sent", "to", notifyTo, "provider", cfg.Mail.Provider)
	return nil
}
