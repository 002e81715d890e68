// Package auth validates the bearer credential on the convert endpoint.
package auth

import (
	"crypto/subtle"
	"strings"

	"md2docx/internal/domain"
)

// TokenFromHeader extracts the bearer token from an Authorization header
// value. The scheme keyword is case-insensitive; the shape must be exactly
// two tokens.
func TokenFromHeader(header string) (string, *domain.Error) {
	if header == "" {
		return "", domain.Unauthorized("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", domain.Unauthorized("invalid authorization header format")
	}
	return parts[1], nil
}

// VerifyAPIKey compares the presented token against the configured secret in
// constant time. subtle.ConstantTimeCompare consumes a full pass over equal
// lengths, so comparison cost never depends on where the strings differ; a
// length mismatch leaks only the length, which is not secret.
func VerifyAPIKey(token, secret string) *domain.Error {
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		return domain.Unauthorized("invalid API key")
	}
	return nil
}

// Check runs header extraction and key verification as one pure predicate.
func Check(header, secret string) *domain.Error {
	token, err := TokenFromHeader(header)
	if err != nil {
		return err
	}
	return VerifyAPIKey(token, secret)
}
