package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/parichoy/server/internal/auth"
)

// Senders deliver an OTP code to a phone number out-of-band. Delivery is
// best-effort: callers dispatch in the background and only log failures.

// ProviderSender posts the message to an HTTP SMS gateway, retrying transient
// failures with bounded exponential backoff.
type ProviderSender struct {
	url    string
	apiKey string
	client *http.Client
	logger *zap.Logger
}

// NewProviderSender creates a sender for an HTTP SMS gateway
func NewProviderSender(url, apiKey string, logger *zap.Logger) *ProviderSender {
	return &ProviderSender{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

type providerPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Send posts the OTP message to the provider
func (s *ProviderSender) Send(ctx context.Context, phone, code string) error {
	body, err := json.Marshal(providerPayload{
		To:      phone,
		Message: fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code),
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("provider returned %d", resp.StatusCode))
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("provider returned %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}

	s.logger.Info("sms delivered", zap.String("phone", auth.MaskPhone(phone)))
	return nil
}

// LogSender writes the code to the log instead of sending it. Development only.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a development sender that only logs
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the OTP instead of delivering it
func (s *LogSender) Send(_ context.Context, phone, code string) error {
	s.logger.Info("dev sms",
		zap.String("phone", auth.MaskPhone(phone)),
		zap.String("code", code),
	)
	return nil
}
