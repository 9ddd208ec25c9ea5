package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/async"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/validation"
)

const (
	// DefaultMaxAttempts bounds regeneration after value collisions
	DefaultMaxAttempts = 10
	// DefaultDeliveryTimeout bounds a single mail delivery
	DefaultDeliveryTimeout = 15 * time.Second
)

// Config tunes the one-time code service
type Config struct {
	TTL             time.Duration
	MaxAttempts     int
	DeliveryTimeout time.Duration
	// AsyncDelivery sends mail in the background. The issue result then reports
	// Queued instead of Delivered.
	AsyncDelivery bool
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		TTL:             CodeTTL,
		MaxAttempts:     DefaultMaxAttempts,
		DeliveryTimeout: DefaultDeliveryTimeout,
	}
}

// IssueResult describes an issued code without revealing its value
type IssueResult struct {
	Email     string    `json:"email"`
	Action    Action    `json:"action"`
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
	Queued    bool      `json:"queued,omitempty"`
}

// Service issues and verifies one-time codes
type Service struct {
	store    Store
	users    UserLookup
	mailer   Mailer
	logger   *observability.Logger
	metrics  *observability.Metrics
	cfg      Config
	outbox   *async.WorkerPool
	now      func() time.Time
	generate func() (string, error)
}

// NewService creates a new one-time code service. metrics may be nil.
func NewService(store Store, users UserLookup, mailer Mailer, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Service {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = def.DeliveryTimeout
	}
	return &Service{
		store:    store,
		users:    users,
		mailer:   mailer,
		logger:   logger.WithField("component", "otp"),
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
		generate: Generate,
	}
}

// WithClock replaces the time source, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithGenerator replaces the code generator, for tests
func (s *Service) WithGenerator(gen func() (string, error)) *Service {
	s.generate = gen
	return s
}

// WithOutbox routes asynchronous deliveries through pool instead of one
// goroutine per code
func (s *Service) WithOutbox(pool *async.WorkerPool) *Service {
	s.outbox = pool
	return s
}

// ResolveAction turns REGISTER_OR_LOGIN into LOGIN when an account exists for
// email and REGISTER otherwise. Other actions are returned unchanged.
func (s *Service) ResolveAction(ctx context.Context, email string, action Action) (Action, error) {
	if action != ActionRegisterOrLogin {
		return action, nil
	}
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return "", apperr.Internal(err)
	}
	if exists {
		return ActionLogin, nil
	}
	return ActionRegister, nil
}

// Issue generates, stores and mails a fresh code for email. Any previous code for
// the same email and resolved action is discarded. A delivery failure is logged
// and reported through IssueResult.Delivered, it never fails the call.
func (s *Service) Issue(ctx context.Context, email string, action Action) (res *IssueResult, err error) {
	ctx, span := observability.StartSpan(ctx, "otp.Issue", attribute.String("otp.action", string(action)))
	defer func() { observability.EndSpan(span, err) }()
	return s.issue(ctx, email, action)
}

func (s *Service) issue(ctx context.Context, email string, action Action) (*IssueResult, error) {
	email, err := validation.ValidateEmail(email)
	if err != nil {
		return nil, err
	}
	if action == "" {
		return nil, apperr.MissingParameter("action")
	}
	if _, err := ParseAction(string(action)); err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	resolved, err := s.ResolveAction(ctx, email, action)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if swept, err := s.store.DeleteExpired(ctx, now); err != nil {
		return nil, apperr.Internal(err)
	} else if swept > 0 {
		s.logger.WithField("count", swept).Debug("swept expired codes")
	}

	if err := s.store.DeleteForEmailAction(ctx, email, resolved); err != nil {
		return nil, apperr.Internal(err)
	}

	code, err := s.insert(ctx, email, resolved, now)
	if err != nil {
		return nil, err
	}

	result := &IssueResult{
		Email:     email,
		Action:    resolved,
		ExpiresAt: code.ExpiresAt,
	}

	if s.cfg.AsyncDelivery {
		result.Queued = s.enqueue(ctx, code)
	} else {
		deliverCtx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
		result.Delivered = s.deliver(deliverCtx, code)
		cancel()
	}

	s.metrics.RecordOTPIssued(string(resolved), result.Delivered)
	return result, nil
}

func (s *Service) insert(ctx context.Context, email string, action Action, now time.Time) (*Code, error) {
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		value, err := s.generate()
		if err != nil {
			return nil, apperr.Internal(err)
		}

		code := &Code{
			Email:     email,
			Value:     value,
			Action:    action,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.TTL),
		}
		inserted, err := s.store.InsertUnique(ctx, code)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if inserted {
			return code, nil
		}
		s.logger.WithField("attempt", attempt+1).Debug("code collision, regenerating")
	}
	return nil, apperr.Internal(errors.New("could not allocate a unique code"))
}

func (s *Service) enqueue(ctx context.Context, code *Code) bool {
	task := func(ctx context.Context) error {
		s.deliver(ctx, code)
		return nil
	}
	if s.outbox == nil {
		async.SafeGo(context.WithoutCancel(ctx), s.cfg.DeliveryTimeout, "otp delivery", s.logger, task)
		return true
	}
	if err := s.outbox.Submit(task); err != nil {
		s.logger.WithError(err).WithField("email", code.Email).Error("failed to queue one-time code")
		return false
	}
	return true
}

func (s *Service) deliver(ctx context.Context, code *Code) bool {
	if s.mailer == nil {
		s.logger.WithField("email", code.Email).Warn("no mailer configured, code not delivered")
		return false
	}
	if err := s.mailer.SendCode(ctx, code.Email, code.Value, purpose(code.Action), s.cfg.TTL); err != nil {
		s.logger.WithError(err).
			WithField("email", code.Email).
			WithField("action", string(code.Action)).
			Error("failed to deliver one-time code")
		return false
	}
	return true
}

func purpose(action Action) string {
	switch action {
	case ActionRegister:
		return "registration"
	case ActionResetPassword:
		return "password reset"
	default:
		return "login"
	}
}

// Consume verifies value against the most recent code for email and action.
// The code is deleted on every outcome: match, mismatch and expiry.
func (s *Service) Consume(ctx context.Context, email, value string, action Action) (err error) {
	ctx, span := observability.StartSpan(ctx, "otp.Consume", attribute.String("otp.action", string(action)))
	defer func() { observability.EndSpan(span, err) }()
	return s.consume(ctx, email, value, action)
}

func (s *Service) consume(ctx context.Context, email, value string, action Action) error {
	email = validation.NormalizeEmail(email)
	if email == "" {
		return apperr.MissingParameter("email")
	}
	value = validation.NormalizeCode(value)
	if value == "" {
		return apperr.MissingParameter("code")
	}

	code, err := s.store.Latest(ctx, email, action)
	if errors.Is(err, ErrCodeNotFound) {
		s.metrics.RecordOTPVerification(string(action), "not_found")
		return apperr.NotFound("no code issued for this email")
	}
	if err != nil {
		return apperr.Internal(err)
	}

	deleted, err := s.store.Delete(ctx, code)
	if err != nil {
		return apperr.Internal(err)
	}
	if !deleted {
		// a concurrent submission consumed it first
		s.metrics.RecordOTPVerification(string(action), "not_found")
		return apperr.NotFound("no code issued for this email")
	}

	if code.Expired(s.now()) {
		s.metrics.RecordOTPVerification(string(action), "expired")
		return apperr.BadRequest("code expired")
	}
	if subtle.ConstantTimeCompare([]byte(code.Value), []byte(value)) != 1 {
		s.metrics.RecordOTPVerification(string(action), "mismatch")
		return apperr.BadRequest("invalid code")
	}

	s.metrics.RecordOTPVerification(string(action), "matched")
	return nil
}

// Purge removes every expired code and returns how many were deleted
func (s *Service) Purge(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now().UTC())
}
