package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters; stored hashes are "<hex salt>:<hex derived key>"
const (
	cost            = 16384
	blockSize       = 8
	parallelization = 1
	keylen          = 64
)

var ErrInvalidEmailOrPassword = fmt.Errorf("invalid email or password")

// HashPassword derives a salted scrypt digest. Every call uses a fresh salt,
// so hashing the same password twice gives two different (but both valid)
// digests.
func HashPassword(password string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	salt := hex.EncodeToString(buf)
	dk, err := scrypt.Key([]byte(password), []byte(salt), cost, blockSize, parallelization, keylen)
	if err != nil {
		return "", err
	}
	return salt + ":" + hex.EncodeToString(dk), nil
}

// VerifyPassword reports whether password matches storedHash. Malformed
// hashes simply fail to match.
func VerifyPassword(password, storedHash string) bool {
	salt, hashed, ok := strings.Cut(storedHash, ":")
	if !ok || salt == "" || hashed == "" {
		return false
	}
	dk, err := scrypt.Key([]byte(password), []byte(salt), cost, blockSize, parallelization, keylen)
	if err != nil {
		return false
	}
	dst := make([]byte, hex.EncodedLen(len(dk)))
	hex.Encode(dst, dk)

	return subtle.ConstantTimeCompare([]byte(hashed), dst) == 1
}
