package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/reviewloop/reviewloop/internal/config"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const zaloMessageEndpoint = "https://openapi.zalo.me/v3.0/oa/message/cs"

// Service delivers customer notifications over Zalo OA messages, falling
// back to email when the customer has no Zalo identity.
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements Dispatcher
var _ Dispatcher = (*Service)(nil)

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// NotifyCustomer sends the message through the first channel the customer
// can be reached on.
func (s *Service) NotifyCustomer(ctx context.Context, customer *models.Customer, message string) error {
	if customer.ZaloUserID != "" && s.config.ZaloOAToken != "" {
		if err := s.sendZaloMessage(ctx, customer.ZaloUserID, message); err != nil {
			return fmt.Errorf("zalo notification failed: %w", err)
		}
		logrus.Debugf("Sent Zalo notification to customer %s", customer.ID)
		return nil
	}

	if customer.Email != "" && s.config.SMTPHost != "" {
		if err := s.sendEmail(customer.Email, message); err != nil {
			return fmt.Errorf("email notification failed: %w", err)
		}
		logrus.Debugf("Sent email notification to customer %s", customer.ID)
		return nil
	}

	return fmt.Errorf("customer %s has no reachable notification channel", customer.ID)
}

func (s *Service) sendZaloMessage(ctx context.Context, zaloUserID, message string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("access_token", s.config.ZaloOAToken).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"recipient": map[string]string{"user_id": zaloUserID},
			"message":   map[string]string{"text": message},
		}).
		Post(zaloMessageEndpoint)

	if err != nil {
		return err
	}

	var parsed struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return fmt.Errorf("failed to decode zalo response: %w", err)
	}
	if parsed.Error != 0 {
		return fmt.Errorf("zalo API error %d: %s", parsed.Error, parsed.Message)
	}
	return nil
}

func (s *Service) sendEmail(to, message string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Your review got a reply")
	m.SetBody("text/plain", message)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
