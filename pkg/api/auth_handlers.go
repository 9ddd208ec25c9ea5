package api

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jobportal/pkg/accounts"
	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/authz"
	"github.com/platinummonkey/jobportal/pkg/httputil"
	"github.com/platinummonkey/jobportal/pkg/middleware"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/otp"
	"github.com/platinummonkey/jobportal/pkg/upload"
	"github.com/platinummonkey/jobportal/pkg/validation"
)

// Audit actions
const (
	ActionIssueCode      = "otp.issue"
	ActionRegister       = "account.register"
	ActionLogin          = "account.login"
	ActionChangePassword = "account.password_change"
	ActionResetPassword  = "account.password_reset"
)

// Upload fields accepted by the registration forms
const (
	FieldResume = "resume"
	FieldAvatar = "avatar"
	FieldLogo   = "logo"
)

// AuthHandlers serves code issuance, registration and sign-in
type AuthHandlers struct {
	codes    *otp.Service
	accounts *accounts.Service
	uploader *upload.Uploader
	audit    *auth.AuditLogger
}

// NewAuthHandlers creates auth handlers
func NewAuthHandlers(codes *otp.Service, accts *accounts.Service, uploader *upload.Uploader, audit *auth.AuditLogger) *AuthHandlers {
	return &AuthHandlers{codes: codes, accounts: accts, uploader: uploader, audit: audit}
}

// RegisterRoutes registers authentication routes. A nil otpLimiter leaves code
// issuance unthrottled.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, a *authz.Authorizer, otpLimiter middleware.Limiter, metrics *observability.Metrics) {
	var issue http.Handler = http.HandlerFunc(h.issueCode)
	if otpLimiter != nil {
		issue = middleware.RateLimit(otpLimiter, "otp", middleware.ClientIPKey, h.audit, metrics)(issue)
	}
	router.Handle("/auth/otp", issue).Methods(http.MethodPost)
	router.HandleFunc("/auth/register-or-login", h.registerOrLogin).Methods(http.MethodPost)
	router.HandleFunc("/auth/register/employee", h.registerEmployee).Methods(http.MethodPost)
	router.HandleFunc("/auth/register/employer", h.registerEmployer).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	router.HandleFunc("/auth/password/reset", h.resetPassword).Methods(http.MethodPost)
	router.Handle("/auth/password/change", route(a, authz.Authenticated, h.changePassword)).Methods(http.MethodPost)
}

type issueCodeRequest struct {
	Email  string `json:"email"`
	Action string `json:"action"`
}

// issueCode handles POST /auth/otp
func (h *AuthHandlers) issueCode(w http.ResponseWriter, r *http.Request) {
	var req issueCodeRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}

	result, err := h.codes.Issue(r.Context(), req.Email, otp.Action(strings.ToUpper(strings.TrimSpace(req.Action))))
	h.audit.LogFromRequest(r, ActionIssueCode, validation.NormalizeEmail(req.Email), 0, err)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}

	message := "code sent"
	switch {
	case result.Queued:
		message = "code queued for delivery"
	case !result.Delivered:
		message = "code issued but could not be delivered"
	}
	httputil.WriteSuccess(w, message, result)
}

type addressRequest struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
}

func (a *addressRequest) address() *auth.Address {
	if a == nil {
		return nil
	}
	addr := &auth.Address{
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		Country:    strings.TrimSpace(a.Country),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
	if addr.IsZero() {
		return nil
	}
	return addr
}

type registerRequest struct {
	Email           string          `json:"email"`
	Code            string          `json:"code"`
	GoogleToken     string          `json:"google_token"`
	GoogleCode      string          `json:"google_code"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Password        string          `json:"password"`
	ConfirmPassword string          `json:"confirm_password"`
	Address         *addressRequest `json:"address"`
}

func (req *registerRequest) toService() *accounts.RegisterRequest {
	return &accounts.RegisterRequest{
		Email:           req.Email,
		Code:            req.Code,
		GoogleToken:     req.GoogleToken,
		GoogleCode:      req.GoogleCode,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Address:         req.Address.address(),
	}
}

// registerOrLogin handles POST /auth/register-or-login
func (h *AuthHandlers) registerOrLogin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}

	session, err := h.accounts.RegisterOrLogin(r.Context(), req.toService())
	h.auditSession(r, ActionLogin, req.Email, session, err)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	writeSession(w, session)
}

// registerEmployee handles POST /auth/register/employee
func (h *AuthHandlers) registerEmployee(w http.ResponseWriter, r *http.Request) {
	h.registerWithProfile(w, r, auth.RoleEmployee, "employees", FieldResume, FieldAvatar)
}

// registerEmployer handles POST /auth/register/employer
func (h *AuthHandlers) registerEmployer(w http.ResponseWriter, r *http.Request) {
	h.registerWithProfile(w, r, auth.RoleEmployer, "employers", FieldLogo)
}

// registerWithProfile reads a multipart registration form, stores its files
// and creates the account. Stored files are removed when registration fails.
func (h *AuthHandlers) registerWithProfile(w http.ResponseWriter, r *http.Request, role auth.Role, prefix string, fileFields ...string) {
	form, err := h.uploader.ParseForm(r)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	defer form.RemoveAll()

	req, err := registrationFromForm(form, role)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}

	files, err := h.uploader.SaveForm(r.Context(), prefix, form, fileFields...)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	attachFiles(req, files)

	session, err := h.accounts.Register(r.Context(), role, req)
	h.auditSession(r, ActionRegister, req.Email, session, err)
	if err != nil {
		h.uploader.Remove(r.Context(), files)
		httputil.WriteFailure(w, r, err)
		return
	}
	writeSession(w, session)
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func registrationFromForm(form *multipart.Form, role auth.Role) (*accounts.RegisterRequest, error) {
	req := &accounts.RegisterRequest{
		Email:           formValue(form, "email"),
		Code:            formValue(form, "code"),
		GoogleToken:     formValue(form, "google_token"),
		GoogleCode:      formValue(form, "google_code"),
		FirstName:       formValue(form, "first_name"),
		LastName:        formValue(form, "last_name"),
		Password:        formValue(form, "password"),
		ConfirmPassword: formValue(form, "confirm_password"),
	}
	addr := &addressRequest{
		Line1:      formValue(form, "address_line1"),
		Line2:      formValue(form, "address_line2"),
		City:       formValue(form, "city"),
		State:      formValue(form, "state"),
		Country:    formValue(form, "country"),
		PostalCode: formValue(form, "postal_code"),
	}
	req.Address = addr.address()

	switch role {
	case auth.RoleEmployee:
		profile := &auth.EmployeeProfile{
			Phone:    formValue(form, "phone"),
			Headline: formValue(form, "headline"),
			Skills:   validation.SplitList(formValue(form, "skills")),
		}
		if raw := formValue(form, "experience_years"); raw != "" {
			years, err := strconv.Atoi(raw)
			if err != nil || years < 0 {
				return nil, apperr.BadRequest("experience_years must be a non-negative integer")
			}
			profile.ExperienceYears = years
		}
		req.Employee = profile
	case auth.RoleEmployer:
		req.Employer = &auth.EmployerProfile{
			CompanyName:    formValue(form, "company_name"),
			CompanyWebsite: formValue(form, "company_website"),
			Phone:          formValue(form, "phone"),
		}
	}
	return req, nil
}

func attachFiles(req *accounts.RegisterRequest, files []upload.Result) {
	if req.Employee != nil {
		if f, ok := upload.First(files, FieldResume); ok {
			req.Employee.ResumeURL = f.URL
			req.Employee.ResumePreviewURL = f.PreviewURL
		}
		if f, ok := upload.First(files, FieldAvatar); ok {
			req.Employee.AvatarURL = f.URL
		}
	}
	if req.Employer != nil {
		if f, ok := upload.First(files, FieldLogo); ok {
			req.Employer.LogoURL = f.URL
			req.Employer.LogoPreviewURL = f.PreviewURL
		}
	}
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	GoogleToken string `json:"google_token"`
	GoogleCode  string `json:"google_code"`
}

// login handles POST /auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}

	session, err := h.accounts.Login(r.Context(), &accounts.LoginRequest{
		Email:       req.Email,
		Password:    req.Password,
		Code:        req.Code,
		GoogleToken: req.GoogleToken,
		GoogleCode:  req.GoogleCode,
	})
	h.auditSession(r, ActionLogin, req.Email, session, err)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	writeSession(w, session)
}

type resetPasswordRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// resetPassword handles POST /auth/password/reset
func (h *AuthHandlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}

	err := h.accounts.ResetPassword(r.Context(), req.Email, req.Code, req.Password, req.ConfirmPassword)
	h.audit.LogFromRequest(r, ActionResetPassword, validation.NormalizeEmail(req.Email), 0, err)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "password reset", nil)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// changePassword handles POST /auth/password/change
func (h *AuthHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	user := authz.UserFromContext(r.Context())
	var req changePasswordRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}

	err := h.accounts.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.Password, req.ConfirmPassword)
	h.audit.LogFromRequest(r, ActionChangePassword, user.Email, user.ID, err)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "password changed", nil)
}

func (h *AuthHandlers) auditSession(r *http.Request, action, email string, session *accounts.Session, err error) {
	var userID int64
	if session != nil && session.User != nil {
		userID = session.User.ID
		email = session.User.Email
		if session.Created {
			action = ActionRegister
		}
	}
	h.audit.LogFromRequest(r, action, validation.NormalizeEmail(email), userID, err)
}

func writeSession(w http.ResponseWriter, session *accounts.Session) {
	if session.Created {
		httputil.WriteCreated(w, "account created", session)
		return
	}
	httputil.WriteSuccess(w, "signed in", session)
}
