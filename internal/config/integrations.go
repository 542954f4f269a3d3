package config

import (
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// StorageConfig locates the document bucket and the optional upload ledger.
type StorageConfig struct {
	Bucket         string
	Region         string
	Endpoint       string // S3-compatible endpoint, e.g. http://minio:9000
	PublicBaseURL  string // prefix for document URLs; derived when empty
	AccessKey      string // static credentials; the default chain is used when empty
	SecretKey      string
	LedgerTable    string // DynamoDB table; empty disables the ledger
	DynamoEndpoint string
}

func LoadStorageConfig() StorageConfig {
	return StorageConfig{
		Bucket:         envStr("DOCUMENT_BUCKET", "villa-armonia-documents"),
		Region:         envStr("AWS_REGION", "us-east-1"),
		Endpoint:       os.Getenv("S3_ENDPOINT"),
		PublicBaseURL:  os.Getenv("DOCUMENT_PUBLIC_BASE_URL"),
		AccessKey:      os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		LedgerTable:    os.Getenv("DOCUMENT_LEDGER_TABLE"),
		DynamoEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
	}
}

// OAuthConfig holds the Google sign-in client.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UserInfoURL  string
}

// Enabled reports whether Google sign-in is configured.
func (o OAuthConfig) Enabled() bool { return o.ClientID != "" && o.ClientSecret != "" }

func LoadOAuthConfig() OAuthConfig {
	return OAuthConfig{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  envStr("GOOGLE_REDIRECT_URL", "http://localhost:8080/v1/auth/google/callback"),
		UserInfoURL:  envStr("GOOGLE_USERINFO_URL", "https://openidconnect.googleapis.com/v1/userinfo"),
	}
}

// OAuth2 returns the x/oauth2 client configuration for Google.
func (o OAuthConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  o.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

// MailConfig configures status notifications through MailerSend.
type MailConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// Enabled reports whether notifications should be sent.
func (m MailConfig) Enabled() bool { return m.APIKey != "" && m.FromEmail != "" }

func LoadMailConfig() MailConfig {
	return MailConfig{
		APIKey:    os.Getenv("MAILERSEND_API_KEY"),
		FromEmail: os.Getenv("MAILERSEND_EMAIL"),
		FromName:  envStr("MAILERSEND_FROM_NAME", "Villa Armonia"),
	}
}
