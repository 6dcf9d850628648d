package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "buswatch"

const tokenKey = "session-token"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/buswatch/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("buswatch-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// TokenStore adapts the keyring to the session token contract.
type TokenStore struct{}

// Token returns the stored session token. A missing entry is reported
// as an empty token, not an error.
func (TokenStore) Token() (string, error) {
	token, err := Get(tokenKey)
	if err != nil {
		return "", nil
	}
	return token, nil
}

// SaveToken stores the session token.
func (TokenStore) SaveToken(token string) error {
	return Set(tokenKey, token)
}

// DeleteToken removes the stored session token. Deleting an absent
// token is not an error.
func (TokenStore) DeleteToken() error {
	_ = Delete(tokenKey)
	return nil
}
