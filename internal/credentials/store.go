package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

// FileStore keeps the token as JSON on disk, readable only by the owner.
type FileStore struct {
	Path string
}

func (s *FileStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoToken, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoToken, s.Path)
	}

	return decodeToken(data)
}

func (s *FileStore) Save(token *oauth2.Token) error {
	if strings.TrimSpace(s.Path) == "" {
		return errors.New("token file path is not configured")
	}

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	lock := flock.New(s.Path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock token file: %w", err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.Path)
}

// Delete removes the token file. A missing file is not an error.
func (s *FileStore) Delete() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

const KeyringService = "hr-screener"

// KeyringStore keeps the token in the OS keychain.
type KeyringStore struct {
	Service string
	Account string
}

func (s *KeyringStore) service() string {
	if strings.TrimSpace(s.Service) == "" {
		return KeyringService
	}
	return s.Service
}

func (s *KeyringStore) Load() (*oauth2.Token, error) {
	secret, err := keyring.Get(s.service(), s.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: keyring %s/%s", ErrNoToken, s.service(), s.Account)
	}
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}

	return decodeToken([]byte(secret))
}

func (s *KeyringStore) Save(token *oauth2.Token) error {
	if strings.TrimSpace(s.Account) == "" {
		return errors.New("keyring account name is empty")
	}

	data, err := json.Marshal(token)
	if err != nil {
		return err
	}

	return keyring.Set(s.service(), s.Account, string(data))
}

// Delete removes the keychain entry. A missing entry is not an error.
func (s *KeyringStore) Delete() error {
	if err := keyring.Delete(s.service(), s.Account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("remove keyring token: %w", err)
	}
	return nil
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token has neither access nor refresh token", ErrNoToken)
	}
	return &token, nil
}
