package apitest

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, kept small so seeding stays fast in tests.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 8 * 1024
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

// passwordHash is a salted Argon2id password hash.
type passwordHash struct {
	salt []byte
	hash []byte
}

func hashPassword(password string) passwordHash {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		panic(err)
	}
	return passwordHash{salt: salt, hash: derive(password, salt)}
}

func (s passwordHash) matches(password string) bool {
	return subtle.ConstantTimeCompare(derive(password, s.salt), s.hash) == 1
}

func derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}
