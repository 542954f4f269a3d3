package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/villa-armonia/lot-reservation/internal/model"
	"github.com/villa-armonia/lot-reservation/internal/utils"
)

const userColumns = `id, external_subject, email, password_hash, role, name, phone, date_of_birth,
place_of_birth, marital_status, occupation, national_id, id_document_url, address_document_url,
created_at, updated_at`

// CredentialsSubject is the external subject of a password account.
func CredentialsSubject(email string) string {
	return "credentials:" + strings.ToLower(strings.TrimSpace(email))
}

// UserRepo reads and writes requester profiles.
type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// CreateCredentialUser hashes password and inserts a password account.
// ErrDuplicate means the email is already registered.
func (r *UserRepo) CreateCredentialUser(ctx context.Context, email, password string, role model.Role, cost int) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}
	now := time.Now().UTC()
	_, err = conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO users (external_subject, email, password_hash, role, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		CredentialsSubject(email), email, hash, role, now, now)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrDuplicate
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return r.GetUserBySubject(ctx, CredentialsSubject(email))
}

// GetUserBySubject resolves an external identity to its profile.
func (r *UserRepo) GetUserBySubject(ctx context.Context, subject string) (model.User, error) {
	return r.getOne(ctx, "external_subject=?", subject)
}

// GetUserByID fetches a profile by internal id.
func (r *UserRepo) GetUserByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, "id=?", id)
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (model.User, error) {
	var u model.User
	err := conn(ctx, r.db).GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// EnsureUser creates a bare profile for u.ExternalSubject when none exists
// and returns the stored row.  Existing profiles are left untouched.
func (r *UserRepo) EnsureUser(ctx context.Context, u model.User) (model.User, error) {
	now := time.Now().UTC()
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO users (external_subject, email, name, role, created_at, updated_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE id=id`,
		u.ExternalSubject, strings.ToLower(strings.TrimSpace(u.Email)), u.Name, u.Role, now, now)
	if err != nil {
		return model.User{}, fmt.Errorf("ensure user: %w", err)
	}
	return r.GetUserBySubject(ctx, u.ExternalSubject)
}

// UpsertProfile writes the requester's contact and verification fields,
// creating the profile on first sight.  Role is only set on insert.
func (r *UserRepo) UpsertProfile(ctx context.Context, u model.User) (model.User, error) {
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = u.UpdatedAt
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := conn(ctx, r.db).NamedExecContext(ctx, `
INSERT INTO users (external_subject, email, role, name, phone, date_of_birth, place_of_birth, marital_status,
                   occupation, national_id, id_document_url, address_document_url, created_at, updated_at)
VALUES (:external_subject, :email, :role, :name, :phone, :date_of_birth, :place_of_birth, :marital_status,
        :occupation, :national_id, :id_document_url, :address_document_url, :created_at, :updated_at)
ON DUPLICATE KEY UPDATE
  email=VALUES(email), name=VALUES(name), phone=VALUES(phone), date_of_birth=VALUES(date_of_birth),
  place_of_birth=VALUES(place_of_birth), marital_status=VALUES(marital_status), occupation=VALUES(occupation),
  national_id=VALUES(national_id), id_document_url=VALUES(id_document_url),
  address_document_url=VALUES(address_document_url), updated_at=VALUES(updated_at)`, u)
	if err != nil {
		return model.User{}, fmt.Errorf("upsert profile: %w", err)
	}
	return r.GetUserBySubject(ctx, u.ExternalSubject)
}
