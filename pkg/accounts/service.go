package accounts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/identity"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/otp"
	"github.com/platinummonkey/jobportal/pkg/storage"
	"github.com/platinummonkey/jobportal/pkg/validation"
)

// Login methods used as metric labels
const (
	MethodOTP      = "otp"
	MethodPassword = "password"
	MethodGoogle   = "google"
)

// ErrLoginFailed is the message of every rejected password sign-in
const ErrLoginFailed = "invalid email, password or code"

// Session is the result of a successful sign-in
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *auth.User `json:"user"`
	Created   bool       `json:"created"`
}

// RegisterRequest carries a code or Google credential plus optional account details
type RegisterRequest struct {
	Email           string
	Code            string
	GoogleToken     string
	GoogleCode      string
	FirstName       string
	LastName        string
	Password        string
	ConfirmPassword string
	Address         *auth.Address
	Employee        *auth.EmployeeProfile
	Employer        *auth.EmployerProfile
}

func (r *RegisterRequest) usesGoogle() bool {
	return r.GoogleToken != "" || r.GoogleCode != ""
}

func (r *RegisterRequest) method() string {
	if r.usesGoogle() {
		return MethodGoogle
	}
	return MethodOTP
}

func (r *RegisterRequest) wantsPassword() bool {
	return r.Password != "" || r.ConfirmPassword != ""
}

// LoginRequest carries a password and second-factor code, or a Google credential
type LoginRequest struct {
	Email       string
	Password    string
	Code        string
	GoogleToken string
	GoogleCode  string
}

// Service runs registration, sign-in and user administration
type Service struct {
	store    Store
	codes    *otp.Service
	sessions *auth.SessionManager
	google   identity.Verifier
	logger   *observability.Logger
	metrics  *observability.Metrics
	onStatus []func(userID int64)
}

// NewService creates an account service. google and metrics may be nil.
func NewService(store Store, codes *otp.Service, sessions *auth.SessionManager, google identity.Verifier, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:    store,
		codes:    codes,
		sessions: sessions,
		google:   google,
		logger:   logger.WithField("component", "accounts"),
		metrics:  metrics,
	}
}

// OnStatusChange registers fn to run after a user is activated or deactivated
func (s *Service) OnStatusChange(fn func(userID int64)) {
	s.onStatus = append(s.onStatus, fn)
}

// RegisterOrLogin signs in an existing account or creates a USER account.
// With a code the action is inferred from whether the email is registered.
func (s *Service) RegisterOrLogin(ctx context.Context, req *RegisterRequest) (*Session, error) {
	session, err := s.registerOrLogin(ctx, req)
	s.metrics.RecordLogin(req.method(), err)
	return session, err
}

func (s *Service) registerOrLogin(ctx context.Context, req *RegisterRequest) (*Session, error) {
	if req.usesGoogle() {
		return s.signInWithGoogle(ctx, req, auth.RoleUser)
	}

	email, err := validation.ValidateEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, apperr.MissingParameter("code")
	}

	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	if existing != nil {
		err := s.codes.Consume(ctx, email, req.Code, otp.ActionLogin)
		if err == nil {
			err = checkActive(existing)
		}
		if err != nil {
			return nil, err
		}
		return s.issue(existing, false)
	}

	if req.wantsPassword() {
		if err := auth.ValidatePasswordPolicy(req.Password, req.ConfirmPassword); err != nil {
			return nil, err
		}
	}
	if err := s.codes.Consume(ctx, email, req.Code, otp.ActionRegister); err != nil {
		return nil, err
	}
	user, err := s.createAccount(ctx, email, auth.RoleUser, auth.ProviderOTP, req)
	if err != nil {
		return nil, err
	}
	return s.issue(user, true)
}

// Register creates an EMPLOYEE or EMPLOYER account. A code-based registration
// for an existing email is a conflict; a Google registration signs the
// existing account in.
func (s *Service) Register(ctx context.Context, role auth.Role, req *RegisterRequest) (*Session, error) {
	session, err := s.register(ctx, role, req)
	s.metrics.RecordLogin(req.method(), err)
	return session, err
}

func (s *Service) register(ctx context.Context, role auth.Role, req *RegisterRequest) (*Session, error) {
	if role != auth.RoleEmployee && role != auth.RoleEmployer {
		return nil, apperr.BadRequest("registration is only open to employees and employers")
	}
	// the role's profile record always exists, even when no fields were sent
	if role == auth.RoleEmployee {
		req.Employer = nil
		if req.Employee == nil {
			req.Employee = &auth.EmployeeProfile{}
		}
	} else {
		req.Employee = nil
		if req.Employer == nil {
			req.Employer = &auth.EmployerProfile{}
		}
	}

	if req.usesGoogle() {
		return s.signInWithGoogle(ctx, req, role)
	}

	email, err := validation.ValidateEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, apperr.MissingParameter("code")
	}
	if req.wantsPassword() {
		if err := auth.ValidatePasswordPolicy(req.Password, req.ConfirmPassword); err != nil {
			return nil, err
		}
	}

	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if exists {
		return nil, apperr.Conflict("an account with this email already exists")
	}

	if err := s.codes.Consume(ctx, email, req.Code, otp.ActionRegister); err != nil {
		return nil, err
	}
	user, err := s.createAccount(ctx, email, role, auth.ProviderOTP, req)
	if err != nil {
		return nil, err
	}
	return s.issue(user, true)
}

// Login checks the password together with the LOGIN code as a second factor.
// Any failure of either factor yields the same UNAUTHORIZED error.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*Session, error) {
	if req.GoogleToken != "" || req.GoogleCode != "" {
		session, err := s.signInWithGoogle(ctx, &RegisterRequest{GoogleToken: req.GoogleToken, GoogleCode: req.GoogleCode}, auth.RoleUser)
		s.metrics.RecordLogin(MethodGoogle, err)
		return session, err
	}

	session, err := s.passwordLogin(ctx, req)
	s.metrics.RecordLogin(MethodPassword, err)
	return session, err
}

func (s *Service) passwordLogin(ctx context.Context, req *LoginRequest) (*Session, error) {
	email, err := validation.ValidateEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, apperr.MissingParameter("password")
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, apperr.MissingParameter("code")
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	passwordOK := false
	cred, err := s.store.LatestCredential(ctx, user.ID)
	switch {
	case err == nil:
		passwordOK = auth.CheckPassword(cred.PasswordHash, req.Password)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, apperr.Internal(err)
	}

	// Both factors are evaluated and the code is consumed either way, so the
	// response does not reveal which one failed.
	codeErr := s.codes.Consume(ctx, email, req.Code, otp.ActionLogin)
	if apperr.KindOf(codeErr) == apperr.KindActionFailed {
		return nil, codeErr
	}
	if !passwordOK || codeErr != nil {
		return nil, apperr.Unauthorized(ErrLoginFailed)
	}
	if err := checkActive(user); err != nil {
		return nil, err
	}
	return s.issue(user, false)
}

// ChangePassword replaces the password of an authenticated user
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, password, confirm string) error {
	if current == "" {
		return apperr.MissingParameter("current_password")
	}
	if err := auth.ValidatePasswordPolicy(password, confirm); err != nil {
		return err
	}

	cred, err := s.store.LatestCredential(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.BadRequest("no password is set for this account, use password reset")
	}
	if err != nil {
		return apperr.Internal(err)
	}
	if !auth.CheckPassword(cred.PasswordHash, current) {
		return apperr.Unauthorized("current password is incorrect")
	}
	return s.rotate(ctx, cred, password)
}

// ResetPassword sets a new password after consuming a RESET_PASSWORD code
func (s *Service) ResetPassword(ctx context.Context, email, code, password, confirm string) error {
	email, err := validation.ValidateEmail(email)
	if err != nil {
		return err
	}
	if strings.TrimSpace(code) == "" {
		return apperr.MissingParameter("code")
	}
	if err := auth.ValidatePasswordPolicy(password, confirm); err != nil {
		return err
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := checkActive(user); err != nil {
		return err
	}
	if err := s.codes.Consume(ctx, email, code, otp.ActionResetPassword); err != nil {
		return err
	}

	cred, err := s.store.LatestCredential(ctx, user.ID)
	if errors.Is(err, storage.ErrNotFound) {
		cred = &auth.Credential{UserID: user.ID}
	} else if err != nil {
		return apperr.Internal(err)
	}
	return s.rotate(ctx, cred, password)
}

func (s *Service) rotate(ctx context.Context, cred *auth.Credential, password string) error {
	if cred.Reuses(password) {
		return apperr.BadRequest("password was used recently, choose a different one")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return apperr.Internal(err)
	}
	cred.Rotate(hash)
	if err := s.store.SaveCredential(ctx, cred); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// Me returns the user with its address and profile
func (s *Service) Me(ctx context.Context, userID int64) (*auth.User, error) {
	return s.GetUser(ctx, userID)
}

// GetUser fetches a user by id
func (s *Service) GetUser(ctx context.Context, id int64) (*auth.User, error) {
	user, err := s.store.FindUserByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// ListUsers returns one page of users and the total match count
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]*auth.User, int64, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, 0, apperr.Newf(apperr.KindBadRequest, "unknown role %q", filter.Role)
	}
	filter.Page = filter.Page.Normalize()
	users, total, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return users, total, nil
}

// SetActive activates or deactivates a user. Administrators cannot change
// their own status and only a SUPER_ADMIN may change another administrator.
func (s *Service) SetActive(ctx context.Context, actor *auth.User, id int64, active bool) (*auth.User, error) {
	if actor == nil || !actor.Role.IsAdmin() {
		return nil, apperr.Forbidden("administrator role required")
	}
	if actor.ID == id {
		return nil, apperr.BadRequest("administrators cannot change their own status")
	}

	target, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Role.IsAdmin() && actor.Role != auth.RoleSuperAdmin {
		return nil, apperr.Forbidden("only a super administrator can change another administrator")
	}
	if target.IsActive == active {
		return target, nil
	}

	updated, err := s.store.SetUserActive(ctx, id, active)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	for _, fn := range s.onStatus {
		fn(id)
	}
	s.logger.WithFields(map[string]interface{}{
		"user_id":  id,
		"actor_id": actor.ID,
		"active":   active,
	}).Info("user status changed")
	return updated, nil
}

func (s *Service) signInWithGoogle(ctx context.Context, req *RegisterRequest, role auth.Role) (*Session, error) {
	if s.google == nil {
		return nil, apperr.BadRequest("google sign-in is not configured")
	}

	var (
		id  *identity.Identity
		err error
	)
	if req.GoogleToken != "" {
		id, err = s.google.Verify(ctx, req.GoogleToken)
	} else {
		exchanger, ok := s.google.(identity.CodeExchanger)
		if !ok {
			return nil, apperr.BadRequest("google code exchange is not supported")
		}
		id, err = exchanger.Exchange(ctx, req.GoogleCode)
	}
	if err != nil {
		s.logger.WithError(err).Warn("google token rejected")
		return nil, apperr.Wrap(apperr.KindUnauthorized, "invalid google token", err)
	}
	if !id.EmailVerified {
		return nil, apperr.Unauthorized("google email is not verified")
	}

	email := validation.NormalizeEmail(id.Email)
	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		if err := checkActive(existing); err != nil {
			return nil, err
		}
		return s.issue(existing, false)
	}

	if req.FirstName == "" {
		req.FirstName = id.FirstName
	}
	if req.LastName == "" {
		req.LastName = id.LastName
	}
	if req.Employee != nil && req.Employee.AvatarURL == "" {
		req.Employee.AvatarURL = id.Picture
	}
	// Google accounts sign in with Google, never with a local password
	req.Password, req.ConfirmPassword = "", ""

	user, err := s.createAccount(ctx, email, role, auth.ProviderGoogle, req)
	if apperr.Is(err, apperr.KindConflict) {
		// lost a race with a concurrent first sign-in
		if existing, ferr := s.store.FindUserByEmail(ctx, email); ferr == nil {
			if err := checkActive(existing); err != nil {
				return nil, err
			}
			return s.issue(existing, false)
		}
	}
	if err != nil {
		return nil, err
	}
	return s.issue(user, true)
}

func (s *Service) createAccount(ctx context.Context, email string, role auth.Role, provider auth.Provider, req *RegisterRequest) (*auth.User, error) {
	account := &auth.NewAccount{
		User: &auth.User{
			Email:     email,
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Role:      role,
			IsActive:  true,
			Provider:  provider,
		},
		Employee: req.Employee,
		Employer: req.Employer,
	}
	if !req.Address.IsZero() {
		account.Address = req.Address
	}
	if req.Employee != nil {
		req.Employee.Skills = validation.NormalizeList(req.Employee.Skills)
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		account.PasswordHash = hash
	}

	user, err := s.store.CreateAccount(ctx, account)
	if errors.Is(err, storage.ErrConflict) {
		return nil, apperr.Conflict("an account with this email already exists")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.logger.WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"role":     string(user.Role),
		"provider": string(user.Provider),
	}).Info("account created")
	return user, nil
}

func (s *Service) issue(user *auth.User, created bool) (*Session, error) {
	token, expires, err := s.sessions.Issue(user)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{Token: token, ExpiresAt: expires, User: user, Created: created}, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, err := s.store.FindUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

func checkActive(user *auth.User) error {
	if !user.IsActive {
		return apperr.Unauthorized("account is inactive")
	}
	return nil
}
