package service

import "golang.org/x/crypto/bcrypt"

// HashPassword genera un hash bcrypt con el costo por defecto.
func HashPassword(plaintext string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// CheckPassword compara un plaintext contra un hash bcrypt.
// Un digest malformado nunca genera panic: retorna false.
func CheckPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
