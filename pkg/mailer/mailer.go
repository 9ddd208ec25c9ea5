package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/platinummonkey/jobportal/pkg/observability"
)

// DefaultDialTimeout bounds connecting to the SMTP server when ctx has no deadline
const DefaultDialTimeout = 10 * time.Second

// ErrNotConfigured is returned when no SMTP host is set
var ErrNotConfigured = errors.New("smtp host is not configured")

// Sender delivers a code to its recipient
type Sender interface {
	SendCode(ctx context.Context, to, code, purpose string, ttl time.Duration) error
}

// SMTPConfig holds SMTP connection settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	StartTLS bool   `yaml:"start_tls"`
}

func (c SMTPConfig) addr() string {
	port := c.Port
	if port == 0 {
		port = 587
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// SMTPSender sends codes over SMTP
type SMTPSender struct {
	cfg    SMTPConfig
	logger *observability.Logger
	dialer net.Dialer
}

// NewSMTPSender creates an SMTP sender
func NewSMTPSender(cfg SMTPConfig, logger *observability.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, ErrNotConfigured
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp from address is required")
	}
	return &SMTPSender{
		cfg:    cfg,
		logger: logger.WithField("component", "mailer"),
		dialer: net.Dialer{Timeout: DefaultDialTimeout},
	}, nil
}

// SendCode sends the code in a short plain-text message
func (s *SMTPSender) SendCode(ctx context.Context, to, code, purpose string, ttl time.Duration) error {
	msg := composeMessage(s.cfg.From, to, code, purpose, ttl)

	conn, err := s.dialer.DialContext(ctx, "tcp", s.cfg.addr())
	if err != nil {
		return fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start smtp session: %w", err)
	}
	defer client.Close()

	if s.cfg.StartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fmt.Errorf("smtp server does not support STARTTLS")
		}
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls failed: %w", err)
		}
	}
	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	if err := client.Quit(); err != nil {
		s.logger.WithError(err).Debug("smtp QUIT failed")
	}

	s.logger.WithFields(map[string]interface{}{
		"to":      to,
		"purpose": purpose,
	}).Info("one-time code sent")
	return nil
}

func subjectFor(purpose string) string {
	switch purpose {
	case "REGISTER":
		return "Confirm your registration"
	case "RESET_PASSWORD":
		return "Reset your password"
	default:
		return "Your sign-in code"
	}
}

func composeMessage(from, to, code, purpose string, ttl time.Duration) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subjectFor(purpose))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Your code is %s\r\n", code)
	fmt.Fprintf(&b, "It expires in %s.\r\n", humanDuration(ttl))
	return b.Bytes()
}

func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		n := int(d / time.Minute)
		if n == 1 {
			return "1 minute"
		}
		return strconv.Itoa(n) + " minutes"
	}
	return d.Round(time.Second).String()
}

// LogSender logs codes instead of sending them
type LogSender struct {
	logger *observability.Logger
}

// NewLogSender creates a log-only sender
func NewLogSender(logger *observability.Logger) *LogSender {
	return &LogSender{logger: logger.WithField("component", "mailer")}
}

// SendCode logs the delivery. The code itself is logged at debug level only.
func (s *LogSender) SendCode(ctx context.Context, to, code, purpose string, ttl time.Duration) error {
	s.logger.WithFields(map[string]interface{}{
		"to":      to,
		"purpose": purpose,
		"ttl":     ttl.String(),
	}).Info("one-time code issued")
	s.logger.WithField("to", to).Debugf("one-time code: %s", code)
	return nil
}
