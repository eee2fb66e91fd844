package sheets

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestAuthenticatorUsesValidToken(t *testing.T) {
	consented := 0
	auth := NewAuthenticator(context.Background(), nil,
		&oauth2.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Hour)},
		func(ctx context.Context) (*oauth2.Token, error) {
			consented++
			return &oauth2.Token{AccessToken: "new"}, nil
		})

	cred, err := auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", cred.AccessToken)
	assert.Zero(t, consented)
}

func TestAuthenticatorFallsBackToConsent(t *testing.T) {
	auth := NewAuthenticator(context.Background(), nil,
		&oauth2.Token{AccessToken: "old", Expiry: time.Now().Add(-time.Hour)},
		func(ctx context.Context) (*oauth2.Token, error) {
			return &oauth2.Token{AccessToken: "new"}, nil
		})

	cred, err := auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", cred.AccessToken)

	cred, err = auth.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", cred.AccessToken, "consented token is reused")
}

func TestAuthenticatorWithoutConsent(t *testing.T) {
	auth := NewAuthenticator(context.Background(), nil, nil, nil)
	_, err := auth.Token(context.Background())
	assert.Error(t, err)

	failing := NewAuthenticator(context.Background(), nil, nil, func(ctx context.Context) (*oauth2.Token, error) {
		return nil, errors.New("user closed the window")
	})
	_, err = failing.Reconsent(context.Background())
	assert.ErrorContains(t, err, "user closed the window")
}

func TestPromptConsentRejectsEmptyCode(t *testing.T) {
	conf := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{AuthURL: "https://auth.example/o", TokenURL: "https://auth.example/t"}}
	var out strings.Builder
	consent := PromptConsent(conf, strings.NewReader("\n"), &out)

	_, err := consent(context.Background())
	assert.Error(t, err)
	assert.Contains(t, out.String(), "https://auth.example/o")
}
