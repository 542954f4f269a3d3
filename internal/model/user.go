package model

import (
	"strings"
	"time"
)

// Role controls what a profile may do.  Admins review purchase requests.
type Role string

const (
	RoleBuyer Role = "BUYER"
	RoleAdmin Role = "ADMIN"
)

// RoleFor returns ADMIN when email is one of the bootstrap admin addresses.
func RoleFor(email string, admins []string) Role {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range admins {
		if email != "" && strings.ToLower(strings.TrimSpace(a)) == email {
			return RoleAdmin
		}
	}
	return RoleBuyer
}

// Identity is what the identity provider tells us about a caller.  Subject
// is provider-scoped, e.g. "google:1093..." or "credentials:ana@example.com".
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// User mirrors a row of the `users` table: one internal profile per
// external subject.  The verification fields stay empty until the user
// files a first purchase request.
type User struct {
	ID                 uint64     `db:"id" json:"id"`
	ExternalSubject    string     `db:"external_subject" json:"-"`
	Email              string     `db:"email" json:"email"`
	PasswordHash       *string    `db:"password_hash" json:"-"`
	Role               Role       `db:"role" json:"role"`
	Name               string     `db:"name" json:"name"`
	Phone              string     `db:"phone" json:"phone"`
	DateOfBirth        *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	PlaceOfBirth       string     `db:"place_of_birth" json:"place_of_birth"`
	MaritalStatus      string     `db:"marital_status" json:"marital_status"`
	Occupation         string     `db:"occupation" json:"occupation"`
	NationalID         string     `db:"national_id" json:"national_id"`
	IDDocumentURL      string     `db:"id_document_url" json:"id_document_url"`
	AddressDocumentURL string     `db:"address_document_url" json:"address_document_url"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the profile may review requests.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Profile holds the requester fields collected by the purchase form.
type Profile struct {
	Name          string `form:"name" json:"name" validate:"required,max=120"`
	Email         string `form:"email" json:"email" validate:"required,email,max=190"`
	Phone         string `form:"phone" json:"phone" validate:"required,max=32"`
	DateOfBirth   string `form:"date_of_birth" json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	PlaceOfBirth  string `form:"place_of_birth" json:"place_of_birth" validate:"required,max=120"`
	MaritalStatus string `form:"marital_status" json:"marital_status" validate:"required,max=32"`
	Occupation    string `form:"occupation" json:"occupation" validate:"required,max=120"`
	NationalID    string `form:"national_id" json:"national_id" validate:"required,max=32"`
}

// Documents are the resolved URLs of the two verification uploads.
type Documents struct {
	IDDocumentURL      string `json:"id_document_url" validate:"required,url"`
	AddressDocumentURL string `json:"address_document_url" validate:"required,url"`
}

// RefreshToken mirrors the `refresh_tokens` table.  Only the SHA-256 hash
// of the raw token is stored.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    uint64     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}
