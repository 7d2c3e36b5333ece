package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/microsoft"
)

// OAuthProvider is a TokenProvider backed by an OAuth2 authorization code flow
// with PKCE. Tokens are cached in the store and refreshed silently.
type OAuthProvider struct {
	config      *oauth2.Config
	store       TokenStore
	prompt      Prompt
	authOptions []oauth2.AuthCodeOption
}

func NewOAuthProvider(config *oauth2.Config, store TokenStore, prompt Prompt, authOptions ...oauth2.AuthCodeOption) *OAuthProvider {
	return &OAuthProvider{
		config:      config,
		store:       store,
		prompt:      prompt,
		authOptions: authOptions,
	}
}

// NewMicrosoftProvider signs in against the Microsoft identity platform. An
// empty tenant means "common".
func NewMicrosoftProvider(tenantId, clientId, clientSecret string, store TokenStore, prompt Prompt) *OAuthProvider {
	if tenantId == "" {
		tenantId = "common"
	}
	config := &oauth2.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		Endpoint:     microsoft.AzureADEndpoint(tenantId),
	}
	return NewOAuthProvider(config, store, prompt)
}

func NewGoogleProvider(clientId, clientSecret string, store TokenStore, prompt Prompt) *OAuthProvider {
	config := &oauth2.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
	}
	return NewOAuthProvider(config, store, prompt, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *OAuthProvider) AcquireTokenSilent(ctx context.Context, scopes []string, account string) (*oauth2.Token, error) {
	cached, err := p.store.LoadToken(account)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if cached == nil {
		return nil, errNoCachedToken
	}

	token, err := p.configFor(scopes, "").TokenSource(ctx, cached).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if token.AccessToken != cached.AccessToken {
		if err := p.store.SaveToken(account, token); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
		log.Debugf("Refreshed token saved for %s", account)
	}
	return token, nil
}

// AcquireTokenInteractive runs the consent flow and caches the token for account.
func (p *OAuthProvider) AcquireTokenInteractive(ctx context.Context, scopes []string, account string) (*oauth2.Token, error) {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	options := append([]oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}, p.authOptions...)
	code, redirectURL, err := p.prompt.Authorize(ctx, state, func(redirectURL string) string {
		return p.configFor(scopes, redirectURL).AuthCodeURL(state, options...)
	})
	if err != nil {
		return nil, err
	}

	token, err := p.configFor(scopes, redirectURL).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if err := p.store.SaveToken(account, token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	log.Infof("Signed in as %s", account)
	return token, nil
}

func (p *OAuthProvider) configFor(scopes []string, redirectURL string) *oauth2.Config {
	config := *p.config
	config.Scopes = scopes
	if redirectURL != "" {
		config.RedirectURL = redirectURL
	}
	return &config
}
