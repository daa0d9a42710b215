package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt verifies $2a$/$2b$/$2y$ hashes such as the seeded administrator's.
// New hashes are always argon2id.
type Bcrypt struct{}

// Verify reports whether password matches encodedHash. A mismatch is
// (false, nil).
func (Bcrypt) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}

func isBcrypt(encodedHash string) bool {
	if len(encodedHash) < 4 || encodedHash[0] != '$' || encodedHash[1] != '2' || encodedHash[3] != '$' {
		return false
	}
	switch encodedHash[2] {
	case 'a', 'b', 'y':
		return true
	}
	return false
}
