package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"golang.org/x/oauth2"
)

// TokenStore keeps OAuth tokens per account. LoadToken returns nil, nil when
// nothing is stored for the account.
type TokenStore interface {
	LoadToken(account string) (*oauth2.Token, error)
	SaveToken(account string, token *oauth2.Token) error
}

// MemoryTokenStore keeps tokens for the lifetime of the process only.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*oauth2.Token
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]*oauth2.Token{}}
}

func (s *MemoryTokenStore) LoadToken(account string) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[account]
	if !ok {
		return nil, nil
	}
	copied := *token
	return &copied, nil
}

func (s *MemoryTokenStore) SaveToken(account string, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	s.tokens[account] = &copied
	return nil
}

// FileTokenStore keeps one JSON token file per account, by default under the XDG data directory.
type FileTokenStore struct {
	dir string
}

func NewFileTokenStore(dir string) *FileTokenStore {
	if dir == "" {
		dir = DefaultTokenDir()
	}
	return &FileTokenStore{dir: dir}
}

func DefaultTokenDir() string {
	return filepath.Join(xdg.DataHome, "unical")
}

func (s *FileTokenStore) path(account string) string {
	return filepath.Join(s.dir, "token-"+account+".json")
}

func (s *FileTokenStore) LoadToken(account string) (*oauth2.Token, error) {
	f, err := os.Open(s.path(account))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open token file: %w", err)
	}
	defer f.Close()

	var token oauth2.Token
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &token, nil
}

func (s *FileTokenStore) SaveToken(account string, token *oauth2.Token) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	f, err := os.OpenFile(s.path(account), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}
