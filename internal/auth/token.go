// Package auth hashes and checks the API bearer token.
package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 12

// HashToken returns the bcrypt hash to store in API_TOKEN_HASH.
func HashToken(token string) (string, error) {
	return hashTokenWithCost(token, DefaultBcryptCost)
}

func hashTokenWithCost(token string, cost int) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", fmt.Errorf("token is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(trimmed), cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

// VerifyToken reports whether token matches hash. Blank values never match.
func VerifyToken(token, hash string) bool {
	trimmedToken := strings.TrimSpace(token)
	trimmedHash := strings.TrimSpace(hash)
	if trimmedToken == "" || trimmedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(trimmedHash), []byte(trimmedToken)) == nil
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
