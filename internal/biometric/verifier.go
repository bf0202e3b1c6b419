// Package biometric implements the device unlock gate for a stored session.
//
// A terminal has no fingerprint reader, so the device factor is a local PIN.
// Enroll derives an argon2id key from the PIN; the encoded result is stored
// on the session as its BiometricKey and Verify checks later attempts
// against it.
package biometric

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

const (
	scheme  = "argon2id"
	saltLen = 16
	keyLen  = 32

	// MinPINLength is the shortest accepted PIN.
	MinPINLength = 4
)

var (
	// ErrMismatch is returned when the PIN does not match the enrolled key.
	ErrMismatch = errors.New("unlock failed: PIN does not match")

	// ErrNotEnrolled is returned when verifying against an empty key.
	ErrNotEnrolled = errors.New("unlock is not configured on this device")

	// ErrPINTooShort is returned by Enroll for PINs below MinPINLength.
	ErrPINTooShort = fmt.Errorf("PIN must be at least %d characters", MinPINLength)

	errMalformedKey = errors.New("malformed unlock key")
)

// Verifier checks an unlock attempt against an enrolled key.
type Verifier interface {
	Verify(key, pin string) error
}

// PINVerifier is the argon2id Verifier.
type PINVerifier struct{}

// Enroll derives a new unlock key for pin with a random salt.
func Enroll(pin string) (string, error) {
	if utf8.RuneCountInString(pin) < MinPINLength {
		return "", ErrPINTooShort
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return encode(salt, derive(pin, salt)), nil
}

// Verify returns nil when pin matches key.
func (PINVerifier) Verify(key, pin string) error {
	if key == "" {
		return ErrNotEnrolled
	}
	salt, want, err := decode(key)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(derive(pin, salt), want) != 1 {
		return ErrMismatch
	}
	return nil
}

func derive(pin string, salt []byte) []byte {
	return argon2.IDKey([]byte(pin), salt, 1, 64*1024, 4, keyLen)
}

func encode(salt, hash []byte) string {
	enc := base64.RawStdEncoding
	return scheme + "$" + enc.EncodeToString(salt) + "$" + enc.EncodeToString(hash)
}

func decode(key string) (salt, hash []byte, err error) {
	parts := strings.Split(key, "$")
	if len(parts) != 3 || parts[0] != scheme {
		return nil, nil, errMalformedKey
	}
	enc := base64.RawStdEncoding
	if salt, err = enc.DecodeString(parts[1]); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errMalformedKey, err)
	}
	if hash, err = enc.DecodeString(parts[2]); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errMalformedKey, err)
	}
	if len(hash) != keyLen {
		return nil, nil, errMalformedKey
	}
	return salt, hash, nil
}
