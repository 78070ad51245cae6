package auth

// PASSWORD HASHING:
// Account passwords are stored only as bcrypt hashes. GitHub-only accounts
// have an empty hash and can never pass Verify.
//
// HASH FORMAT:
//
//	$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW
//	 |  |  |                     |
//	 |  |  salt (22 chars)       hash (31 chars)
//	 |  cost
//	 algorithm
//
// The salt and cost travel inside the string, so raising defaultCost only
// affects new hashes and old ones keep verifying.
//
// INPUT LIMIT:
// bcrypt reads at most 72 bytes. Hash refuses longer input instead of
// letting two passwords that share a 72-byte prefix collide. Cyrillic
// passwords reach the limit at 36 characters.

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor, roughly 250ms per hash on a
// current server. Tests use the bcrypt minimum (4) instead.
const defaultCost = 12

// maxPasswordBytes is bcrypt's input limit. Longer inputs are rejected
// rather than silently truncated.
const maxPasswordBytes = 72

// ErrInvalidPassword is returned by Verify for a wrong password and for
// accounts that have no password (GitHub-only sign-in).
var ErrInvalidPassword = errors.New("auth: invalid password")

// ErrPasswordTooLong is returned by Hash for inputs over 72 bytes.
var ErrPasswordTooLong = fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)

// PasswordService provides bcrypt hashing and verification.
//
// Hash format: $2a$<cost>$<22-char salt><31-char hash>. The salt is part of
// the output, so one column stores everything.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest builds a cheap PasswordService for tests in
// other packages. Never use it in production wiring.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify compares plaintext against a stored hash.
//
// TIMING:
// bcrypt.CompareHashAndPassword rehashes plaintext at the stored cost and
// compares with subtle.ConstantTimeCompare. Login for an unknown email
// does not reach Verify, so the service layer answers both cases with the
// same message.
func (p *PasswordService) Verify(hash, plaintext string) error {
	if hash == "" {
		return ErrInvalidPassword
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
