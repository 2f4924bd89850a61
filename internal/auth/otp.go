package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parichoy/server/internal/model"
	"github.com/parichoy/server/internal/repo"
)

// SMSSender delivers an OTP code out-of-band. Implemented by the sms package.
type SMSSender interface {
	Send(ctx context.Context, phone, code string) error
}

// OTPService manages the one-time code lifecycle: cooldown-gated issuance,
// bounded verification attempts and single-use consumption.
type OTPService struct {
	otpRepo     repo.OtpRepo
	sender      SMSSender
	logger      *zap.Logger
	cooldown    time.Duration
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// NewOTPService creates a new OTP service
func NewOTPService(otpRepo repo.OtpRepo, sender SMSSender, logger *zap.Logger, cooldown, ttl time.Duration, maxAttempts int) *OTPService {
	return &OTPService{
		otpRepo:     otpRepo,
		sender:      sender,
		logger:      logger,
		cooldown:    cooldown,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Request issues a new OTP for the phone unless one was created within the
// cooldown window. The row is upserted so a phone never holds more than one
// live code; any prior code, attempts and expiry are replaced. The SMS is
// dispatched in the background after the row is written and its outcome never
// affects the caller.
func (s *OTPService) Request(ctx context.Context, phone string) error {
	existing, err := s.otpRepo.GetByPhone(ctx, phone)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("look up otp: %w", err)
	}
	if err == nil && s.now().Sub(existing.CreatedAt) < s.cooldown {
		return ErrRateLimited
	}

	code, err := GenerateOTPCode()
	if err != nil {
		return fmt.Errorf("generate otp code: %w", err)
	}

	now := s.now()
	otp := model.OTP{
		Phone:     phone,
		Code:      code,
		Attempts:  0,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.otpRepo.Upsert(ctx, otp); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	go s.dispatch(phone, code)
	return nil
}

// dispatch sends the SMS detached from the request so the response is never
// delayed and delivery failures never fail an already-issued OTP.
func (s *OTPService) dispatch(phone, code string) {
	if err := s.sender.Send(context.Background(), phone, code); err != nil {
		s.logger.Warn("otp sms dispatch failed",
			zap.String("phone", MaskPhone(phone)),
			zap.Error(err),
		)
	}
}

// Verify validates a submitted code. Checks run in a fixed order, each
// short-circuiting: missing row, expiry, attempt exhaustion, then the code
// comparison. Expiry and exhaustion are checked before the code so a stale or
// exhausted OTP can never be probed. A matching code consumes the row.
func (s *OTPService) Verify(ctx context.Context, phone, code string) error {
	otp, err := s.otpRepo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOTPNotFound
		}
		return fmt.Errorf("look up otp: %w", err)
	}

	if otp.ExpiresAt.Before(s.now()) {
		if err := s.otpRepo.Delete(ctx, phone); err != nil {
			return fmt.Errorf("delete expired otp: %w", err)
		}
		return ErrOTPExpired
	}

	if otp.Attempts >= s.maxAttempts {
		if err := s.otpRepo.Delete(ctx, phone); err != nil {
			return fmt.Errorf("delete exhausted otp: %w", err)
		}
		return ErrTooManyAttempts
	}

	if otp.Code != code {
		newAttempts, err := s.otpRepo.IncrementAttempts(ctx, phone)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("record failed attempt: %w", err)
		}
		if newAttempts >= s.maxAttempts {
			if err := s.otpRepo.Delete(ctx, phone); err != nil {
				return fmt.Errorf("delete exhausted otp: %w", err)
			}
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}

	// Single use: the row is gone before credentials are issued.
	if err := s.otpRepo.Delete(ctx, phone); err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}
