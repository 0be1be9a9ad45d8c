package utils

import "golang.org/x/crypto/bcrypt"

// OperatorPasswordCost is the bcrypt cost used for the operator password
// hash printed by "server hash-password".
const OperatorPasswordCost = 12

// HashPassword hashes the operator password for ADMIN_PASSWORD_HASH.
func HashPassword(plain string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the configured hash.  A
// malformed hash never matches.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
