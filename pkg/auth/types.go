package auth

import (
	"fmt"
	"strings"
	"time"
)

// Role determines which operations a user may invoke
type Role string

const (
	RoleUser       Role = "USER"
	RoleEmployer   Role = "EMPLOYER"
	RoleEmployee   Role = "EMPLOYEE"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleOperator   Role = "OPERATOR"
)

// AllRoles lists every role in declaration order
var AllRoles = []Role{RoleUser, RoleEmployer, RoleEmployee, RoleAdmin, RoleSuperAdmin, RoleOperator}

// Valid reports whether r is one of the fixed roles
func (r Role) Valid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

// IsAdmin reports whether r is an administrative role
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// ParseRole parses a role name case-insensitively
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Provider records how a user's identity was established
type Provider string

const (
	ProviderOTP    Provider = "OTP"
	ProviderGoogle Provider = "GOOGLE"
	ProviderAdmin  Provider = "ADMIN"
)

// User is a portal account
type User struct {
	ID        int64            `json:"id"`
	Email     string           `json:"email"`
	FirstName string           `json:"first_name,omitempty"`
	LastName  string           `json:"last_name,omitempty"`
	Role      Role             `json:"role"`
	IsActive  bool             `json:"is_active"`
	Provider  Provider         `json:"provider"`
	AddressID *int64           `json:"address_id,omitempty"`
	Address   *Address         `json:"address,omitempty"`
	Employee  *EmployeeProfile `json:"employee,omitempty"`
	Employer  *EmployerProfile `json:"employer,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Address is a postal address attached to a user
type Address struct {
	ID         int64  `json:"id"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code,omitempty"`
}

// IsZero reports whether no address field was supplied
func (a *Address) IsZero() bool {
	return a == nil || (a.Line1 == "" && a.Line2 == "" && a.City == "" && a.State == "" && a.Country == "" && a.PostalCode == "")
}

// EmployeeProfile holds job-seeker details
type EmployeeProfile struct {
	UserID           int64    `json:"user_id"`
	Phone            string   `json:"phone,omitempty"`
	Headline         string   `json:"headline,omitempty"`
	Skills           []string `json:"skills,omitempty"`
	ExperienceYears  int      `json:"experience_years"`
	ResumeURL        string   `json:"resume_url,omitempty"`
	ResumePreviewURL string   `json:"resume_preview_url,omitempty"`
	AvatarURL        string   `json:"avatar_url,omitempty"`
}

// EmployerProfile holds hiring-company details
type EmployerProfile struct {
	UserID         int64  `json:"user_id"`
	CompanyName    string `json:"company_name"`
	CompanyWebsite string `json:"company_website,omitempty"`
	Phone          string `json:"phone,omitempty"`
	LogoURL        string `json:"logo_url,omitempty"`
	LogoPreviewURL string `json:"logo_preview_url,omitempty"`
}

// Credential holds a user's password hash and recent history
type Credential struct {
	UserID         int64     `json:"user_id"`
	PasswordHash   string    `json:"-"`
	PreviousHashes []string  `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewAccount is everything written when a user registers
type NewAccount struct {
	User         *User
	Address      *Address
	Employee     *EmployeeProfile
	Employer     *EmployerProfile
	PasswordHash string
}
