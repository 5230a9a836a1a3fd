package visit

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCode is returned when the scanned or typed code does not match
// the location's special code.
var ErrInvalidCode = errors.New("invalid location code")

// HashCode hashes an on-site code for storage by the Location Service.
func HashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(normalize(code)), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}
	return string(hash), nil
}

// VerifyCode checks code against hash. An empty hash means the location
// accepts any visit.
func VerifyCode(hash, code string) error {
	if hash == "" {
		return nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalize(code)))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("verify code: %w", err)
	}
	return nil
}

func normalize(code string) string {
	return strings.TrimSpace(code)
}
