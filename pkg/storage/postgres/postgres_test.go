package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jobportal/pkg/accounts"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/catalog"
	"github.com/platinummonkey/jobportal/pkg/observability"
	"github.com/platinummonkey/jobportal/pkg/otp"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

var userCols = []string{
	"id", "email", "first_name", "last_name", "role", "is_active", "provider", "address_id", "created_at", "updated_at",
	"a_id", "line1", "line2", "city", "state", "country", "postal_code",
	"ee_user_id", "ee_phone", "headline", "skills", "experience_years", "resume_url", "resume_preview_url", "avatar_url",
	"er_user_id", "company_name", "company_website", "er_phone", "logo_url", "logo_preview_url",
}

func plainUserRow(id int64, email string, role auth.Role, now time.Time) []driver.Value {
	return []driver.Value{
		id, email, "", "", string(role), true, "OTP", nil, now, now,
		nil, nil, nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil, nil,
	}
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil))
	assert.ErrorIs(t, mapError(sql.ErrNoRows), storage.ErrNotFound)
	assert.ErrorIs(t, mapError(&pq.Error{Code: codeUniqueViolation, Constraint: "users_email_key"}), storage.ErrConflict)
	assert.ErrorIs(t, mapError(&pq.Error{Code: codeForeignKeyViolation}), storage.ErrNotFound)
	assert.ErrorIs(t, mapError(&pq.Error{Code: codeForeignKeyViolation}), storage.ErrMissingReference)
	assert.NotErrorIs(t, mapError(sql.ErrNoRows), storage.ErrMissingReference)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapError(other))
}

func TestWhere(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())
	w.add("role = $%d", "ADMIN")
	w.add("is_active = $%d", true)
	assert.Equal(t, " WHERE role = $1 AND is_active = $2", w.String())

	limit, args := w.page(storage.Page{Limit: 500, Offset: -1})
	assert.Equal(t, " LIMIT $3 OFFSET $4", limit)
	assert.Equal(t, []interface{}{"ADMIN", true, storage.MaxPageSize, 0}, args)
	assert.Len(t, w.args, 2, "page does not grow the predicate args")
}

func TestOTPStore_InsertUnique(t *testing.T) {
	db, mock := newMock(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s := NewOTPStore(db, metrics)
	now := time.Now().UTC()

	code := &otp.Code{Email: "a@example.com", Value: "AB12CD", Action: otp.ActionLogin, CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	mock.ExpectQuery(q("INSERT INTO one_time_codes")).
		WithArgs(sqlmock.AnyArg(), "a@example.com", "AB12CD", "LOGIN", now, now.Add(5*time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("id-1"))

	ok, err := s.InsertUnique(context.Background(), code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, code.ID, "an id is assigned")

	mock.ExpectQuery(q("ON CONFLICT (code) DO NOTHING")).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	ok, err = s.InsertUnique(context.Background(), &otp.Code{ID: "x", Value: "AB12CD", Action: otp.ActionLogin})
	require.NoError(t, err)
	assert.False(t, ok, "a value collision is not an error")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("insert_code", backend, "success")))
}

func TestOTPStore_MissingCodeIsNotAFailure(t *testing.T) {
	db, mock := newMock(t)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	s := NewOTPStore(db, metrics)
	ctx := context.Background()

	mock.ExpectQuery(q("FROM one_time_codes")).WithArgs("nobody@example.com", "LOGIN").WillReturnError(sql.ErrNoRows)
	_, err := s.Latest(ctx, "nobody@example.com", otp.ActionLogin)
	assert.ErrorIs(t, err, otp.ErrCodeNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mock.ExpectQuery(q("FROM one_time_codes")).WillReturnError(errors.New("connection reset"))
	_, err = s.Latest(ctx, "nobody@example.com", otp.ActionLogin)
	assert.NotErrorIs(t, err, otp.ErrCodeNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("latest_code", backend, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageOperationsTotal.WithLabelValues("latest_code", backend, "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StorageErrorsTotal.WithLabelValues("latest_code", backend)))
}

func TestOTPStore_LatestAndDelete(t *testing.T) {
	db, mock := newMock(t)
	s := NewOTPStore(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(q("FROM one_time_codes")).WithArgs("a@example.com", "REGISTER").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "code", "action", "created_at", "expires_at"}).
			AddRow("id-1", "a@example.com", "ZZ9PLZ", "REGISTER", now, now.Add(time.Minute)))
	c, err := s.Latest(ctx, "a@example.com", otp.ActionRegister)
	require.NoError(t, err)
	assert.Equal(t, "ZZ9PLZ", c.Value)
	assert.Equal(t, otp.ActionRegister, c.Action)

	mock.ExpectQuery(q("FROM one_time_codes")).WillReturnError(sql.ErrNoRows)
	_, err = s.Latest(ctx, "b@example.com", otp.ActionLogin)
	assert.ErrorIs(t, err, otp.ErrCodeNotFound)

	mock.ExpectExec(q("DELETE FROM one_time_codes WHERE id = $1")).WithArgs("id-1").WillReturnResult(sqlmock.NewResult(0, 1))
	deleted, err := s.Delete(ctx, c)
	require.NoError(t, err)
	assert.True(t, deleted)

	// a concurrent consumer already removed the row
	mock.ExpectExec(q("DELETE FROM one_time_codes WHERE id = $1")).WithArgs("id-1").WillReturnResult(sqlmock.NewResult(0, 0))
	deleted, err = s.Delete(ctx, c)
	require.NoError(t, err)
	assert.False(t, deleted)

	mock.ExpectExec(q("WHERE email = $1 AND action = $2")).WithArgs("a@example.com", "LOGIN").WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, s.DeleteForEmailAction(ctx, "a@example.com", otp.ActionLogin))

	mock.ExpectExec(q("WHERE expires_at <= $1")).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 7))
	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestAccountStore_CreateAccount(t *testing.T) {
	db, mock := newMock(t)
	s := NewAccountStore(db, nil)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO addresses")).
		WithArgs("1 Main St", "", "Pune", "MH", "IN", "411001").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectQuery(q("INSERT INTO users")).
		WithArgs("emp@example.com", "Emma", "", "EMPLOYEE", true, "OTP", int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(3), now, now))
	mock.ExpectExec(q("INSERT INTO employee_profiles")).
		WithArgs(int64(3), "", "Go developer", pq.Array([]string{"go", "sql"}), 4, "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO credentials")).
		WithArgs(int64(3), "hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := s.CreateAccount(context.Background(), &auth.NewAccount{
		User:         &auth.User{Email: "emp@example.com", FirstName: "Emma", Role: auth.RoleEmployee, IsActive: true, Provider: auth.ProviderOTP},
		Address:      &auth.Address{Line1: "1 Main St", City: "Pune", State: "MH", Country: "IN", PostalCode: "411001"},
		Employee:     &auth.EmployeeProfile{Headline: "Go developer", Skills: []string{"go", "sql"}, ExperienceYears: 4},
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), u.ID)
	require.NotNil(t, u.AddressID)
	assert.Equal(t, int64(9), *u.AddressID)
	require.NotNil(t, u.Employee)
	assert.Equal(t, int64(3), u.Employee.UserID)
	assert.Nil(t, u.Employer)
}

func TestAccountStore_CreateAccount_Conflict(t *testing.T) {
	db, mock := newMock(t)
	s := NewAccountStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(q("INSERT INTO users")).WillReturnError(&pq.Error{Code: codeUniqueViolation, Constraint: "users_email_key"})
	mock.ExpectRollback()

	_, err := s.CreateAccount(context.Background(), &auth.NewAccount{
		User: &auth.User{Email: "dup@example.com", Role: auth.RoleUser, Provider: auth.ProviderOTP},
	})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestAccountStore_FindUser(t *testing.T) {
	db, mock := newMock(t)
	s := NewAccountStore(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	row := plainUserRow(5, "boss@example.com", auth.RoleEmployer, now)
	row[7] = int64(2)
	copy(row[10:17], []driver.Value{int64(2), "Road 1", "", "Delhi", "", "IN", ""})
	copy(row[25:31], []driver.Value{int64(5), "Acme", "https://acme.test", "", "", ""})
	mock.ExpectQuery(q("WHERE u.id = $1")).WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(row...))

	u, err := s.FindUserByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleEmployer, u.Role)
	require.NotNil(t, u.Address)
	assert.Equal(t, "Delhi", u.Address.City)
	require.NotNil(t, u.Employer)
	assert.Equal(t, "Acme", u.Employer.CompanyName)
	assert.Nil(t, u.Employee)

	mock.ExpectQuery(q("WHERE u.email = $1")).WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)
	_, err = s.FindUserByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mock.ExpectQuery(q("SELECT EXISTS")).WithArgs("boss@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	exists, err := s.ExistsByEmail(ctx, "boss@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAccountStore_ListUsers(t *testing.T) {
	db, mock := newMock(t)
	s := NewAccountStore(db, nil)
	now := time.Now().UTC()

	mock.ExpectQuery(q("SELECT COUNT(*) FROM users u WHERE u.role = $1 AND u.is_active = $2")).
		WithArgs("ADMIN", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(q("ORDER BY u.id LIMIT $3 OFFSET $4")).
		WithArgs("ADMIN", true, 2, 10).
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(plainUserRow(11, "a11@example.com", auth.RoleAdmin, now)...).
			AddRow(plainUserRow(12, "a12@example.com", auth.RoleAdmin, now)...))

	users, total, err := s.ListUsers(context.Background(), accounts.UserFilter{
		Role: auth.RoleAdmin, ActiveOnly: true, Page: storage.Page{Limit: 2, Offset: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, users, 2)
	assert.Equal(t, "a12@example.com", users[1].Email)
}

func TestAccountStore_Credentials(t *testing.T) {
	db, mock := newMock(t)
	s := NewAccountStore(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(q("FROM credentials WHERE user_id = $1")).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"password_hash", "previous_hashes", "created_at", "updated_at"}).
			AddRow("h2", "{h1,h0}", now, now))
	c, err := s.LatestCredential(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "h2", c.PasswordHash)
	assert.Equal(t, []string{"h1", "h0"}, c.PreviousHashes)

	mock.ExpectQuery(q("FROM credentials")).WithArgs(int64(2)).WillReturnError(sql.ErrNoRows)
	_, err = s.LatestCredential(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mock.ExpectExec(q("ON CONFLICT (user_id) DO UPDATE")).
		WithArgs(int64(1), "h3", pq.Array([]string{"h2", "h1"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveCredential(ctx, &auth.Credential{UserID: 1, PasswordHash: "h3", PreviousHashes: []string{"h2", "h1"}}))

	mock.ExpectExec(q("INSERT INTO credentials")).WillReturnError(&pq.Error{Code: codeForeignKeyViolation})
	err = s.SaveCredential(ctx, &auth.Credential{UserID: 99, PasswordHash: "h"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccountStore_SetUserActive(t *testing.T) {
	db, mock := newMock(t)
	s := NewAccountStore(db, nil)
	now := time.Now().UTC()

	mock.ExpectExec(q("UPDATE users SET is_active = $2")).WithArgs(int64(4), false).WillReturnResult(sqlmock.NewResult(0, 1))
	row := plainUserRow(4, "u@example.com", auth.RoleUser, now)
	row[5] = false
	mock.ExpectQuery(q("WHERE u.id = $1")).WithArgs(int64(4)).WillReturnRows(sqlmock.NewRows(userCols).AddRow(row...))

	u, err := s.SetUserActive(context.Background(), 4, false)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	mock.ExpectExec(q("UPDATE users SET is_active")).WithArgs(int64(40), true).WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = s.SetUserActive(context.Background(), 40, true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCatalogStore_Categories(t *testing.T) {
	db, mock := newMock(t)
	s := NewCatalogStore(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(q("INSERT INTO categories")).
		WithArgs("BACKENDDEV", "APIs", true, "", "", int64(1), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	c := &catalog.Category{Name: "BACKENDDEV", Description: "APIs", IsActive: true, CreatedBy: 1, UpdatedBy: 1}
	require.NoError(t, s.CreateCategory(ctx, c))
	assert.Equal(t, int64(1), c.ID)

	mock.ExpectQuery(q("INSERT INTO categories")).WillReturnError(&pq.Error{Code: codeUniqueViolation})
	assert.ErrorIs(t, s.CreateCategory(ctx, &catalog.Category{Name: "BACKENDDEV"}), storage.ErrConflict)

	cols := []string{"id", "name", "description", "is_active", "image_url", "image_preview_url", "created_by", "updated_by", "created_at", "updated_at"}
	mock.ExpectQuery(q("FROM categories WHERE name = $1")).WithArgs("BACKENDDEV").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "BACKENDDEV", "APIs", true, "", "", int64(1), int64(1), now, now))
	got, err := s.GetCategoryByName(ctx, "BACKENDDEV")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)

	mock.ExpectQuery(q("SELECT COUNT(*) FROM categories WHERE is_active = $1")).WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(q("ORDER BY name LIMIT $2 OFFSET $3")).WithArgs(true, storage.DefaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "BACKENDDEV", "APIs", true, "", "", int64(1), int64(1), now, now))
	list, total, err := s.ListCategories(ctx, catalog.CategoryFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	mock.ExpectQuery(q("UPDATE categories")).WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, s.UpdateCategory(ctx, &catalog.Category{ID: 77, Name: "X"}), storage.ErrNotFound)

	mock.ExpectExec(q("DELETE FROM categories WHERE id = $1")).WithArgs(int64(77)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.DeleteCategory(ctx, 77), storage.ErrNotFound)
}

func TestCatalogStore_Jobs(t *testing.T) {
	db, mock := newMock(t)
	s := NewCatalogStore(db, nil)
	ctx := context.Background()
	now := time.Now().UTC()
	deadline := now.Add(72 * time.Hour)
	catID := int64(2)

	mock.ExpectQuery(q("INSERT INTO jobs")).
		WithArgs("Go dev", "Build APIs", pq.Array([]string{"3y"}), pq.Array([]string{"go"}), "Remote", "REMOTE", "FULL_TIME",
			1, 5, int64(100), int64(200), 2, deadline, catID, int64(7), true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(10), now, now))
	j := &catalog.Job{
		Title: "Go dev", Description: "Build APIs", Requirements: []string{"3y"}, Skills: []string{"go"},
		Location: "Remote", Mode: catalog.ModeRemote, EmploymentType: catalog.FullTime,
		MinExperience: 1, MaxExperience: 5, MinSalary: 100, MaxSalary: 200, Openings: 2,
		Deadline: deadline, CategoryID: &catID, EmployerID: 7, IsActive: true,
	}
	require.NoError(t, s.CreateJob(ctx, j))
	assert.Equal(t, int64(10), j.ID)

	mock.ExpectQuery(q("INSERT INTO jobs")).WillReturnError(&pq.Error{Code: codeForeignKeyViolation, Constraint: "jobs_category_id_fkey"})
	assert.ErrorIs(t, s.CreateJob(ctx, &catalog.Job{Title: "x"}), storage.ErrMissingReference)

	jobCols := []string{"id", "title", "description", "requirements", "skills", "location", "mode", "employment_type",
		"min_experience", "max_experience", "min_salary", "max_salary", "openings", "deadline", "category_id", "employer_id",
		"is_active", "created_at", "updated_at"}
	mock.ExpectQuery(q("SELECT COUNT(*) FROM jobs WHERE category_id = $1 AND mode = $2")).
		WithArgs(catID, "REMOTE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(q("ORDER BY id DESC LIMIT $3 OFFSET $4")).
		WithArgs(catID, "REMOTE", storage.DefaultPageSize, 0).
		WillReturnRows(sqlmock.NewRows(jobCols).AddRow(int64(10), "Go dev", "Build APIs", "{3y}", "{go}", "Remote", "REMOTE", "FULL_TIME",
			1, 5, int64(100), int64(200), 2, deadline, nil, int64(7), true, now, now))
	jobs, total, err := s.ListJobs(ctx, catalog.JobFilter{CategoryID: &catID, Mode: catalog.ModeRemote})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, []string{"go"}, jobs[0].Skills)
	assert.Nil(t, jobs[0].CategoryID)

	mock.ExpectQuery(q("UPDATE jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"employer_id", "created_at", "updated_at"}).AddRow(int64(7), now, now))
	upd := *j
	upd.EmployerID = 999
	require.NoError(t, s.UpdateJob(ctx, &upd))
	assert.Equal(t, int64(7), upd.EmployerID, "the owner is never rewritten")

	mock.ExpectQuery(q("FROM jobs WHERE id = $1")).WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)
	_, err = s.GetJob(ctx, 404)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	mock.ExpectExec(q("DELETE FROM jobs WHERE id = $1")).WithArgs(int64(10)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeleteJob(ctx, 10))
}

func TestRunMigrations(t *testing.T) {
	db, mock := newMock(t)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1).AddRow(2))
	for _, m := range Migrations()[2:] {
		mock.ExpectBegin()
		mock.ExpectExec(q(m.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(q("INSERT INTO schema_migrations")).WithArgs(m.Version, m.Description).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}
	require.NoError(t, RunMigrations(context.Background(), db, logger))
}

func TestRunMigrations_Failure(t *testing.T) {
	db, mock := newMock(t)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	mock.ExpectExec(q("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT version FROM schema_migrations")).WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(q(Migrations()[0].SQL)).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err := RunMigrations(context.Background(), db, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1")
}

func TestConnect_RequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), storage.Config{})
	assert.Error(t, err)
}
