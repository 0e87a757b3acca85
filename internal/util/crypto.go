package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// APIKeyLength is the length of client API keys in hex characters. 32
// characters (16 bytes) keeps keys compatible with the mobile OTP pad.
const APIKeyLength = 32

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// CryptoRandomString generates a random hex string for salts and API keys
func CryptoRandomString(length int) (string, error) {
	bytes, err := CryptoRandomBytes(int64((length + 1) / 2))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// GenerateAPIKey returns a fresh random API key.
func GenerateAPIKey() (string, error) {
	return CryptoRandomString(APIKeyLength)
}

// SHA256Hex returns the SHA-256 hash of b as a lowercase hex string.
// Used as a content fingerprint for synced avatar images so an unchanged
// image is never re-uploaded.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
