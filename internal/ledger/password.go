package ledger

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"accounting/internal/core"
)

// HashPassword returns the bcrypt hash stored in place of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", core.ErrInvalidValue)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports a mismatch as core.ErrNotFound so a failed login is
// indistinguishable from an unknown user.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return core.ErrNotFound
	}
	return nil
}
