package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/unical/unical/pkg/calendar"
	"golang.org/x/oauth2"
)

var ErrUserCancelled = errors.New("sign-in cancelled by the user")
var errNoCachedToken = errors.New("no cached token for account")

// TokenProvider is the identity provider: a silent acquisition that may fail
// when the session is missing or expired, and an interactive one the user can
// decline.
type TokenProvider interface {
	AcquireTokenSilent(ctx context.Context, scopes []string, account string) (*oauth2.Token, error)
	AcquireTokenInteractive(ctx context.Context, scopes []string, account string) (*oauth2.Token, error)
}

// Credentials owns the token acquisition for one account. Acquisitions are
// serialized, so while an interactive prompt is open every other caller waits
// for its outcome instead of opening a second prompt.
type Credentials struct {
	mu       sync.Mutex
	provider TokenProvider
	account  string
	scopes   []string
}

func NewCredentials(provider TokenProvider, account string, scopes []string) *Credentials {
	return &Credentials{
		provider: provider,
		account:  account,
		scopes:   scopes,
	}
}

func (c *Credentials) Account() string {
	return c.account
}

// EnsureAccess returns a valid access token, falling back to the interactive
// prompt when silent acquisition fails. Errors always wrap calendar.ErrAuthRequired.
func (c *Credentials) EnsureAccess(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.provider.AcquireTokenSilent(ctx, c.scopes, c.account)
	if err == nil {
		return token, nil
	}
	log.Infof("Silent token acquisition failed for %s (%v), acquiring token interactively", c.account, err)

	token, err = c.provider.AcquireTokenInteractive(ctx, c.scopes, c.account)
	if err != nil {
		log.Errorf("interactive token acquisition failed for %s: %v", c.account, err)
		return nil, fmt.Errorf("%w: %w", calendar.ErrAuthRequired, err)
	}
	return token, nil
}
