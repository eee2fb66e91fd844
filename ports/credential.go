package ports

import (
	"context"
	"time"
)

// Credential is a bearer token for the sheet source
type Credential struct {
	AccessToken string    `json:"-"`
	Expiry      time.Time `json:"expiry"`
}

// CredentialSource hands out bearer credentials. Token renews silently when it
// can and falls back to interactive consent; Reconsent always asks again.
type CredentialSource interface {
	Token(ctx context.Context) (Credential, error)
	Reconsent(ctx context.Context) (Credential, error)
}
