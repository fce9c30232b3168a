// Package credential stores mailbox passwords in the system keyring.
// The database never holds mail secrets; the IMAP app password for an
// account lives here, keyed by the account's email address.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "emailorganizer"

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
		FileDir:                  "~/.config/emailorganizer/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("emailorganizer-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// mailboxKey builds the keyring key for an account's mailbox password.
func mailboxKey(email string) string {
	return "mailbox-password:" + email
}

// MailboxPassword retrieves the stored mailbox password for an account.
func MailboxPassword(email string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(mailboxKey(email))
	if err != nil {
		return "", fmt.Errorf("getting mailbox password for %s: %w", email, err)
	}

	return string(item.Data), nil
}

// SetMailboxPassword stores the mailbox password for an account.
func SetMailboxPassword(email, password string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  mailboxKey(email),
		Data: []byte(password),
	})
	if err != nil {
		return fmt.Errorf("setting mailbox password for %s: %w", email, err)
	}

	return nil
}

// DeleteMailboxPassword removes the stored mailbox password for an account.
func DeleteMailboxPassword(email string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(mailboxKey(email))
	if err != nil {
		return fmt.Errorf("deleting mailbox password for %s: %w", email, err)
	}

	return nil
}
