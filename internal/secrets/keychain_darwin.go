//go:build darwin

package secrets

import (
	"errors"

	"github.com/keybase/go-keychain"
)

func init() {
	store = &KeychainStore{}
}

// KeychainStore keeps tokens as generic passwords in the macOS Keychain.
type KeychainStore struct{}

func genericItem(service, account string) keychain.Item {
	item := keychain.NewItem()
	item.SetSecClass(keychain.SecClassGenericPassword)
	item.SetService(service)
	item.SetAccount(account)
	return item
}

func (k *KeychainStore) Get(service, account string) (string, error) {
	query := genericItem(service, account)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	// Some macOS versions report a miss as an empty result
	switch {
	case errors.Is(err, keychain.ErrorItemNotFound):
		return "", ErrNotFound
	case err != nil:
		return "", err
	case len(results) == 0:
		return "", ErrNotFound
	}
	return string(results[0].Data), nil
}

// Set adds the token, replacing the data of an existing item.
func (k *KeychainStore) Set(service, account, secret string) error {
	item := genericItem(service, account)
	item.SetLabel("spaceclient token (" + account + ")")
	item.SetData([]byte(secret))
	// Tokens stay on this machine, never in iCloud
	item.SetSynchronizable(keychain.SynchronizableNo)
	item.SetAccessible(keychain.AccessibleWhenUnlocked)

	err := keychain.AddItem(item)
	if errors.Is(err, keychain.ErrorDuplicateItem) {
		// Only the data changes, the query item stays the same
		update := keychain.NewItem()
		update.SetData([]byte(secret))
		return keychain.UpdateItem(genericItem(service, account), update)
	}
	return err
}

func (k *KeychainStore) Delete(service, account string) error {
	err := keychain.DeleteItem(genericItem(service, account))
	if errors.Is(err, keychain.ErrorItemNotFound) {
		return ErrNotFound
	}
	return err
}

func (k *KeychainStore) IsSupported() bool {
	return true
}
