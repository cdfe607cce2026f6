package security

import (
	"errors"
	"fmt"
	"strings"

	"capturesque/internal/common"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

// PasswordHasher is the one-way password primitive used by the auth service.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}

// Hasher writes new hashes with the configured algorithm and verifies both
// bcrypt and argon2id encodings, so switching PASSWORD_HASHER does not lock
// out existing users.
type Hasher struct {
	kind       string
	bcryptCost int
	argon      *argon2id.Params
}

func NewHasher(kind string) *Hasher {
	return &Hasher{kind: kind, bcryptCost: bcrypt.DefaultCost, argon: argon2id.DefaultParams}
}

// NewHasherWithParams is NewHasher with explicit work factors.
func NewHasherWithParams(kind string, bcryptCost int, argon *argon2id.Params) *Hasher {
	return &Hasher{kind: kind, bcryptCost: bcryptCost, argon: argon}
}

func (h *Hasher) Hash(plain string) (string, error) {
	switch h.kind {
	case HasherArgon2id:
		return argon2id.CreateHash(plain, h.argon)
	case HasherBcrypt, "":
		b, err := bcrypt.GenerateFromPassword([]byte(plain), h.bcryptCost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("password must be at most 72 bytes: %w", common.ErrInvalidInput)
		}
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", errors.New("unknown password hasher " + h.kind)
	}
}

func (h *Hasher) Verify(plain, encoded string) (bool, error) {
	if strings.HasPrefix(encoded, "$argon2id$") {
		return argon2id.ComparePasswordAndHash(plain, encoded)
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
