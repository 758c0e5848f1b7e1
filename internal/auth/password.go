package auth

import "golang.org/x/crypto/bcrypt"

// passwordCost matches the salt rounds existing accounts were hashed with.
const passwordCost = 12

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	return string(hash), err
}

// CheckPasswordHash reports whether password matches the stored hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
