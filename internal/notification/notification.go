// Package notification sends operational alert emails in response to domain
// events. It subscribes to the event bus; nothing calls it directly.
package notification

import (
	"context"
	"fmt"
	"net"
	"time"

	"voicedesk_backend/internal/events"
	"voicedesk_backend/platform/config"
	"voicedesk_backend/platform/logger"

	gomail "github.com/wneessen/go-mail"
)

// Service sends ops alert emails. When no SMTP host is configured the
// service subscribes nothing and every send is a no-op.
type Service struct {
	cfg     config.EmailConfig
	log     *logger.Logger
	enabled bool
}

// NewService creates the notification service.
func NewService(cfg config.EmailConfig, log *logger.Logger) *Service {
	return &Service{
		cfg:     cfg,
		log:     log,
		enabled: cfg.GetEmailEnabled() && cfg.GetOpsAlertAddress() != "",
	}
}

// Subscribe registers the service's event handlers on the bus.
func (s *Service) Subscribe(bus events.Bus) {
	if !s.enabled {
		s.log.Info("ops alert emails disabled, no SMTP configuration")
		return
	}
	bus.Subscribe(events.EventCallRateLimited, events.HandlerFunc(s.onCallRateLimited))
}

func (s *Service) onCallRateLimited(ctx context.Context, event events.Event) error {
	e, ok := event.(events.CallRateLimited)
	if !ok {
		return nil
	}

	subject := fmt.Sprintf("Call-start rate limit hit for tenant %s", e.TenantID)
	body := fmt.Sprintf(
		"Tenant %s exceeded the call-start rate limit at %s.\n\nAttempts in window: %d (limit %d)\nCall ID: %s\n",
		e.TenantID, e.OccurredAt().UTC().Format(time.RFC3339), e.Count, e.Limit, e.CallID)

	if err := s.send(ctx, subject, body); err != nil {
		s.log.Error("ops alert send failed", "event", event.EventName(), "error", err)
		return err
	}
	return nil
}

func (s *Service) send(ctx context.Context, subject, body string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.GetEmailFromAddress()); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(s.cfg.GetOpsAlertAddress()); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(s.cfg.GetSMTPHost(),
		gomail.WithPort(s.cfg.GetSMTPPort()),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.GetSMTPUsername()),
		gomail.WithPassword(s.cfg.GetSMTPPassword()),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, msg)
}
