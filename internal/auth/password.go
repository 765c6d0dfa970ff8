package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher turns a password into the digest stored with a credential.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare reports whether password matches hash in constant time.
	Compare(hash, password string) bool
}

func NewPasswordHasher(name string) (PasswordHasher, error) {
	switch name {
	case "", "sha256":
		return SHA256Hasher{}, nil
	case "bcrypt":
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unsupported PASSWORD_HASHER=%q", name)
	}
}

// SHA256Hasher stores the hex SHA-256 digest of the password (64 chars).
// It is deterministic: the same password always yields the same digest.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(password string) (string, error) {
	return HashPassword(password), nil
}

func (SHA256Hasher) Compare(hash, password string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(HashPassword(password))) == 1
}

func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// BcryptHasher is salted and slow; digests are 60 chars.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
