package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/jobportal/pkg/accounts"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

const userColumns = `
	u.id, u.email, u.first_name, u.last_name, u.role, u.is_active, u.provider, u.address_id, u.created_at, u.updated_at,
	a.id, a.line1, a.line2, a.city, a.state, a.country, a.postal_code,
	ee.user_id, ee.phone, ee.headline, ee.skills, ee.experience_years, ee.resume_url, ee.resume_preview_url, ee.avatar_url,
	er.user_id, er.company_name, er.company_website, er.phone, er.logo_url, er.logo_preview_url`

const userFrom = `
	FROM users u
	LEFT JOIN addresses a ON a.id = u.address_id
	LEFT JOIN employee_profiles ee ON ee.user_id = u.id
	LEFT JOIN employer_profiles er ON er.user_id = u.id`

// AccountStore persists users, profiles and credentials
type AccountStore struct {
	db *sql.DB
	instrument
}

// NewAccountStore creates an account store over db
func NewAccountStore(db *sql.DB, metrics *observability.Metrics) *AccountStore {
	return &AccountStore{db: db, instrument: instrument{metrics: metrics}}
}

var _ accounts.Store = (*AccountStore)(nil)

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u         auth.User
		addressID sql.NullInt64

		aID                                            sql.NullInt64
		line1, line2, city, state, country, postalCode sql.NullString

		eeUser                                              sql.NullInt64
		eePhone, headline, resumeURL, resumePreview, avatar sql.NullString
		skills                                              pq.StringArray
		experience                                          sql.NullInt64

		erUser                                       sql.NullInt64
		company, website, erPhone, logo, logoPreview sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.Provider, &addressID, &u.CreatedAt, &u.UpdatedAt,
		&aID, &line1, &line2, &city, &state, &country, &postalCode,
		&eeUser, &eePhone, &headline, &skills, &experience, &resumeURL, &resumePreview, &avatar,
		&erUser, &company, &website, &erPhone, &logo, &logoPreview,
	)
	if err != nil {
		return nil, err
	}

	if addressID.Valid {
		id := addressID.Int64
		u.AddressID = &id
	}
	if aID.Valid {
		u.Address = &auth.Address{
			ID:         aID.Int64,
			Line1:      line1.String,
			Line2:      line2.String,
			City:       city.String,
			State:      state.String,
			Country:    country.String,
			PostalCode: postalCode.String,
		}
	}
	if eeUser.Valid {
		u.Employee = &auth.EmployeeProfile{
			UserID:           eeUser.Int64,
			Phone:            eePhone.String,
			Headline:         headline.String,
			Skills:           []string(skills),
			ExperienceYears:  int(experience.Int64),
			ResumeURL:        resumeURL.String,
			ResumePreviewURL: resumePreview.String,
			AvatarURL:        avatar.String,
		}
	}
	if erUser.Valid {
		u.Employer = &auth.EmployerProfile{
			UserID:         erUser.Int64,
			CompanyName:    company.String,
			CompanyWebsite: website.String,
			Phone:          erPhone.String,
			LogoURL:        logo.String,
			LogoPreviewURL: logoPreview.String,
		}
	}
	return &u, nil
}

func (s *AccountStore) findUser(ctx context.Context, op, predicate string, arg interface{}) (u *auth.User, err error) {
	ctx, done := s.start(ctx, op)
	defer done(&err)

	row := s.db.QueryRowContext(ctx, "SELECT"+userColumns+userFrom+" WHERE "+predicate, arg)
	u, err = scanUser(row)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

func (s *AccountStore) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.findUser(ctx, "find_user_by_email", "u.email = $1", email)
}

func (s *AccountStore) FindUserByID(ctx context.Context, id int64) (*auth.User, error) {
	return s.findUser(ctx, "find_user_by_id", "u.id = $1", id)
}

func (s *AccountStore) ExistsByEmail(ctx context.Context, email string) (exists bool, err error) {
	ctx, done := s.start(ctx, "exists_by_email")
	defer done(&err)

	err = s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists)
	return exists, err
}

// CreateAccount writes every part of the account in one transaction
func (s *AccountStore) CreateAccount(ctx context.Context, account *auth.NewAccount) (u *auth.User, err error) {
	ctx, done := s.start(ctx, "create_account")
	defer done(&err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	out := *account.User
	out.Address, out.AddressID, out.Employee, out.Employer = nil, nil, nil, nil

	if !account.Address.IsZero() {
		addr := *account.Address
		err = tx.QueryRowContext(ctx, `
			INSERT INTO addresses (line1, line2, city, state, country, postal_code)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			addr.Line1, addr.Line2, addr.City, addr.State, addr.Country, addr.PostalCode,
		).Scan(&addr.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert address: %w", err)
		}
		out.Address = &addr
		out.AddressID = &addr.ID
	}

	var addressID interface{}
	if out.AddressID != nil {
		addressID = *out.AddressID
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, first_name, last_name, role, is_active, provider, address_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		out.Email, out.FirstName, out.LastName, string(out.Role), out.IsActive, string(out.Provider), addressID,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	if account.Employee != nil {
		p := *account.Employee
		p.UserID = out.ID
		p.Skills = append([]string(nil), p.Skills...)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO employee_profiles (user_id, phone, headline, skills, experience_years, resume_url, resume_preview_url, avatar_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.UserID, p.Phone, p.Headline, pq.Array(p.Skills), p.ExperienceYears, p.ResumeURL, p.ResumePreviewURL, p.AvatarURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert employee profile: %w", err)
		}
		out.Employee = &p
	}
	if account.Employer != nil {
		p := *account.Employer
		p.UserID = out.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO employer_profiles (user_id, company_name, company_website, phone, logo_url, logo_preview_url)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.UserID, p.CompanyName, p.CompanyWebsite, p.Phone, p.LogoURL, p.LogoPreviewURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert employer profile: %w", err)
		}
		out.Employer = &p
	}
	if account.PasswordHash != "" {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO credentials (user_id, password_hash) VALUES ($1, $2)",
			out.ID, account.PasswordHash,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert credential: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit account: %w", err)
	}
	return &out, nil
}

func (s *AccountStore) LatestCredential(ctx context.Context, userID int64) (c *auth.Credential, err error) {
	ctx, done := s.start(ctx, "latest_credential")
	defer done(&err)

	c = &auth.Credential{UserID: userID}
	var previous pq.StringArray
	err = s.db.QueryRowContext(ctx, `
		SELECT password_hash, previous_hashes, created_at, updated_at
		FROM credentials WHERE user_id = $1`, userID,
	).Scan(&c.PasswordHash, &previous, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	c.PreviousHashes = []string(previous)
	return c, nil
}

func (s *AccountStore) SaveCredential(ctx context.Context, cred *auth.Credential) (err error) {
	ctx, done := s.start(ctx, "save_credential")
	defer done(&err)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, previous_hashes)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
			previous_hashes = EXCLUDED.previous_hashes,
			updated_at = NOW()`,
		cred.UserID, cred.PasswordHash, pq.Array(cred.PreviousHashes),
	)
	return mapError(err)
}

func (s *AccountStore) ListUsers(ctx context.Context, filter accounts.UserFilter) (users []*auth.User, total int64, err error) {
	ctx, done := s.start(ctx, "list_users")
	defer done(&err)

	var w where
	if filter.Role != "" {
		w.add("u.role = $%d", string(filter.Role))
	}
	if filter.ActiveOnly {
		w.add("u.is_active = $%d", true)
	}

	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users u"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit, args := w.page(filter.Page)
	rows, err := s.db.QueryContext(ctx, "SELECT"+userColumns+userFrom+w.String()+" ORDER BY u.id"+limit, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users = make([]*auth.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *AccountStore) SetUserActive(ctx context.Context, id int64, active bool) (*auth.User, error) {
	err := func() (err error) {
		ctx, done := s.start(ctx, "set_user_active")
		defer done(&err)

		res, err := s.db.ExecContext(ctx,
			"UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1", id, active)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}
	return s.FindUserByID(ctx, id)
}
