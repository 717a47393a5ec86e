package auth

import "golang.org/x/crypto/bcrypt"

// HashSecret wraps bcrypt.GenerateFromPassword for API key storage.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifySecret wraps bcrypt.CompareHashAndPassword for API key checks.
func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
