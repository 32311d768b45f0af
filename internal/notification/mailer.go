package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/mrz1836/postmark"
)

var ErrSendFailed = errors.New("failed to send email")

type Message struct {
	To       string
	Subject  string
	TextBody string
	Tag      string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer picks the delivery backend configured under mail.provider.
func NewMailer(cfg internal.MailConfig, logger *slog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogMailer(logger), nil
	case "postmark":
		return NewPostmarkMailer(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.From)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// LogMailer writes the envelope to the log and drops the body, which may
// carry credentials.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email delivery skipped (log mailer)",
		"to", msg.To,
		"subject", msg.Subject,
		"tag", msg.Tag)
	return nil
}

type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func NewPostmarkMailer(serverToken, accountToken, from string) (*PostmarkMailer, error) {
	if strings.TrimSpace(serverToken) == "" {
		return nil, errors.New("postmark server token is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("sender address is required")
	}
	return &PostmarkMailer{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

// WithBaseURL points the client at another API host.
func (m *PostmarkMailer) WithBaseURL(url string) *PostmarkMailer {
	m.client.BaseURL = url
	return m
}

func (m *PostmarkMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" || msg.Subject == "" {
		return fmt.Errorf("%w: recipient and subject are required", ErrSendFailed)
	}
	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:     m.from,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
