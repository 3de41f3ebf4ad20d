package notification

import (
	"crypto/tls"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/spec-kit/issue-escalation/internal/config"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("no recipients")

// Sender delivers a single plain-text message.
type Sender interface {
	Send(receivers []string, subject, body string) error
	Host() string
}

type smtpSender struct {
	dialer         *gomail.Dialer
	fromAddress    string
	fromName       string
	retryCount     int
	retryBackoffMs int
	sleep          func(time.Duration)
	logger         *zap.Logger
}

// NewSMTPSender builds a gomail-backed sender with exponential retry.
func NewSMTPSender(cfg config.MailConfig, logger *zap.Logger) Sender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		logger.Warn("mail TLS verification disabled", zap.String("host", cfg.Host))
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
	}
	retryCount := cfg.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}
	backoff := cfg.RetryBackoffMs
	if backoff <= 0 {
		backoff = 100
	}
	return &smtpSender{
		dialer:         dialer,
		fromAddress:    cfg.From,
		fromName:       cfg.SenderName,
		retryCount:     retryCount,
		retryBackoffMs: backoff,
		sleep:          time.Sleep,
		logger:         logger,
	}
}

func (s *smtpSender) Send(receivers []string, subject, body string) error {
	if len(receivers) == 0 {
		return ErrNoRecipients
	}
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.fromAddress, s.fromName)
	msg.SetHeader("To", receivers...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	var lastErr error
	backoffMs := s.retryBackoffMs
	for attempt := 0; attempt <= s.retryCount; attempt++ {
		err := s.dialer.DialAndSend(msg)
		if err == nil {
			s.logger.Debug("mail sent",
				zap.Int("receivers", len(receivers)),
				zap.String("subject", subject),
				zap.Int("attempt", attempt+1),
			)
			return nil
		}
		lastErr = err
		if attempt < s.retryCount {
			s.logger.Warn("mail send failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Int("backoff_ms", backoffMs),
				zap.Error(err),
			)
			s.sleep(time.Duration(backoffMs) * time.Millisecond)
			backoffMs = int(math.Min(float64(backoffMs)*2, 32000))
		}
	}
	return lastErr
}

func (s *smtpSender) Host() string {
	return s.dialer.Host
}
