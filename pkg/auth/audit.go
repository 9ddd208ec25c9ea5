package auth

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/jobportal/pkg/observability"
)

// AuditEvent is a security-relevant account event
type AuditEvent struct {
	Action    string
	UserID    int64
	Email     string
	IPAddress string
	UserAgent string
	Status    string
	Reason    string
	CreatedAt time.Time
}

// AuditLogger writes security events to the structured log
type AuditLogger struct {
	logger *observability.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *observability.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.WithField("component", "audit")}
}

// LogAction records an audit event
func (al *AuditLogger) LogAction(event *AuditEvent) error {
	if event.Action == "" {
		return fmt.Errorf("action is required")
	}
	if event.Status == "" {
		return fmt.Errorf("status is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	entry := al.logger.WithFields(map[string]interface{}{
		"action":     event.Action,
		"status":     event.Status,
		"email":      event.Email,
		"ip_address": event.IPAddress,
		"user_agent": event.UserAgent,
		"at":         event.CreatedAt.Format(time.RFC3339),
	})
	if event.UserID != 0 {
		entry = entry.WithField("user_id", event.UserID)
	}
	if event.Reason != "" {
		entry = entry.WithField("reason", event.Reason)
	}

	if event.Status == StatusSuccess {
		entry.Info("audit event")
	} else {
		entry.Warn("audit event")
	}
	return nil
}

// LogFromRequest records an audit event with client details taken from r
func (al *AuditLogger) LogFromRequest(r *http.Request, action, email string, userID int64, err error) {
	event := &AuditEvent{
		Action:    action,
		UserID:    userID,
		Email:     email,
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
		Status:    StatusSuccess,
	}
	if err != nil {
		event.Status = StatusFailure
		event.Reason = err.Error()
	}
	_ = al.LogAction(event)
}

// ClientIP returns the originating client address of r
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Audit action names
const (
	ActionOTPIssue          = "otp.issue"
	ActionRegister          = "account.register"
	ActionLogin             = "auth.login"
	ActionGoogleLogin       = "auth.google"
	ActionPasswordChange    = "password.change"
	ActionPasswordReset     = "password.reset"
	ActionUserActivate      = "user.activate"
	ActionUserDeactivate    = "user.deactivate"
	ActionRateLimitExceeded = "ratelimit.exceeded"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)
