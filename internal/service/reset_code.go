package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"unicode"
)

// GenerateResetCode produce un codigo decimal de 6 digitos en
// [100000, 999999] y su digest sha256 en hex. El digest no lleva sal:
// debe poder recomputarse a partir del codigo que ingresa el usuario.
func GenerateResetCode() (code, digest string, err error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", "", err
	}
	code = fmt.Sprintf("%06d", n.Int64()+100000)
	return code, HashResetCode(code), nil
}

// HashResetCode calcula el digest determinista de un codigo.
func HashResetCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// MatchResetCode compara un codigo contra un digest almacenado en
// tiempo constante.
func MatchResetCode(code, storedDigest string) bool {
	if storedDigest == "" {
		return false
	}
	digest := HashResetCode(code)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedDigest)) == 1
}

func isValidResetCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
