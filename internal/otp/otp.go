// Package otp implements the mobile login one-time pad. The mobile client
// generates a random pad, sends it with the login request, and the server
// XOR-encrypts the fresh API key with it before the redirect back into the
// app, so the credential never crosses the redirect in cleartext.
package otp

import (
	"encoding/hex"
	"errors"
)

// Length is the required pad length in hex characters (32 bytes), matching
// the API key length so the XOR is a true one-time pad.
const Length = 64

var (
	ErrMalformedOTP = errors.New("otp: must be 64 lowercase hex characters")
	ErrKeyLength    = errors.New("otp: api key length does not match pad")
)

// IsValid reports whether s is a well-formed one-time pad. Validation
// happens before the pad is used anywhere; a malformed pad is a 400-class
// user error, not a redirect.
func IsValid(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// EncryptAPIKey XORs the ASCII bytes of apiKey with the pad and returns the
// result hex-encoded.
func EncryptAPIKey(apiKey, pad string) (string, error) {
	if !IsValid(pad) {
		return "", ErrMalformedOTP
	}
	padBytes, err := hex.DecodeString(pad)
	if err != nil {
		return "", ErrMalformedOTP
	}
	if len(apiKey) != len(padBytes) {
		return "", ErrKeyLength
	}
	out := make([]byte, len(apiKey))
	for i := 0; i < len(apiKey); i++ {
		out[i] = apiKey[i] ^ padBytes[i]
	}
	return hex.EncodeToString(out), nil
}

// DecryptAPIKey reverses EncryptAPIKey. The server never needs it; it exists
// so tests can verify the round trip the way a mobile client would.
func DecryptAPIKey(encrypted, pad string) (string, error) {
	if !IsValid(pad) {
		return "", ErrMalformedOTP
	}
	padBytes, err := hex.DecodeString(pad)
	if err != nil {
		return "", ErrMalformedOTP
	}
	cipherBytes, err := hex.DecodeString(encrypted)
	if err != nil {
		return "", ErrKeyLength
	}
	if len(cipherBytes) != len(padBytes) {
		return "", ErrKeyLength
	}
	out := make([]byte, len(cipherBytes))
	for i := range cipherBytes {
		out[i] = cipherBytes[i] ^ padBytes[i]
	}
	return string(out), nil
}
