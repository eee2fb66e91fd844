package sheets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"sheetflow/ports"
)

// Scopes needed to list and read spreadsheets
var Scopes = []string{
	"https://www.googleapis.com/auth/drive.metadata.readonly",
	"https://www.googleapis.com/auth/spreadsheets.readonly",
}

// ConsentFunc runs the interactive consent flow and returns a fresh token
type ConsentFunc func(ctx context.Context) (*oauth2.Token, error)

// Authenticator is a ports.CredentialSource over an OAuth2 token source. The
// credential lives on the value; there is no package-level token.
type Authenticator struct {
	mu      sync.Mutex
	ctx     context.Context
	conf    *oauth2.Config
	source  oauth2.TokenSource
	consent ConsentFunc
}

// NewAuthenticator creates an authenticator. initial may hold just a refresh
// token; conf may be nil for a fixed access token. consent may be nil when no
// interactive flow is available.
func NewAuthenticator(ctx context.Context, conf *oauth2.Config, initial *oauth2.Token, consent ConsentFunc) *Authenticator {
	a := &Authenticator{ctx: ctx, conf: conf, consent: consent}
	if initial != nil {
		a.source = a.tokenSource(initial)
	}
	return a
}

func (a *Authenticator) tokenSource(tok *oauth2.Token) oauth2.TokenSource {
	if a.conf == nil {
		return oauth2.StaticTokenSource(tok)
	}
	return oauth2.ReuseTokenSource(tok, a.conf.TokenSource(a.ctx, tok))
}

// Token returns a valid credential, renewing silently first and falling back
// to interactive consent
func (a *Authenticator) Token(ctx context.Context) (ports.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.source != nil {
		tok, err := a.source.Token()
		if err == nil && tok.Valid() {
			return toCredential(tok), nil
		}
		log.Printf("[SheetsAuth] silent renewal failed: %v", err)
	}
	return a.reconsent(ctx)
}

// Reconsent discards the current token and runs the consent flow
func (a *Authenticator) Reconsent(ctx context.Context) (ports.Credential, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reconsent(ctx)
}

func (a *Authenticator) reconsent(ctx context.Context) (ports.Credential, error) {
	if a.consent == nil {
		return ports.Credential{}, errors.New("interactive consent is not available")
	}
	tok, err := a.consent(ctx)
	if err != nil {
		return ports.Credential{}, fmt.Errorf("consent failed: %w", err)
	}
	if !tok.Valid() {
		return ports.Credential{}, errors.New("consent returned an invalid token")
	}
	a.source = a.tokenSource(tok)
	return toCredential(tok), nil
}

func toCredential(tok *oauth2.Token) ports.Credential {
	return ports.Credential{AccessToken: tok.AccessToken, Expiry: tok.Expiry}
}

// PromptConsent returns a ConsentFunc that prints the authorization URL to out
// and exchanges the code the user pastes into in
func PromptConsent(conf *oauth2.Config, in io.Reader, out io.Writer) ConsentFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context) (*oauth2.Token, error) {
		authURL := conf.AuthCodeURL("sheetflow", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		fmt.Fprintf(out, "Open this URL and paste the authorization code:\n%s\n> ", authURL)

		code, err := reader.ReadString('\n')
		if err != nil && code == "" {
			return nil, fmt.Errorf("failed to read authorization code: %w", err)
		}
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, errors.New("empty authorization code")
		}
		return conf.Exchange(ctx, code)
	}
}
