package authcore

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash. The salt and work factor are
// baked into the output so verification only needs the stored hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext password against
// the stored hash. Malformed stored hashes report as a mismatch rather than a
// distinct error, so callers cannot distinguish a corrupted record from a
// wrong password.
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrMismatchedHashAndPassword
	}
	return nil
}
