package krypto

import (
	"encoding/hex"
	"errors"
	"log/slog"
)

const (
	// tokenLen is the number of random bytes in a token, 16 bytes
	// gives us 128 bits of entropy.
	tokenLen = 16
)

var ErrInvalidToken = errors.New("invalid token")

// Token is a random token that is sent via email. Tokens authorize
// exactly one pending action, confirming or cancelling a subscription.
//
// The only time a token should be provided in plaintext is as part of
// the email to the subscriber. Tokens are confidential and should never
// be exposed in logs.
type Token [tokenLen]byte

// GenerateToken creates a new random token.
func GenerateToken() (Token, error) {
	b, err := genRandomBytes(tokenLen)
	if err != nil {
		return [tokenLen]byte{}, err
	}
	return [tokenLen]byte(b), nil
}

// ParseToken parses a token from a string. Only exact matches are
// accepted, there is no case folding or partial matching.
func ParseToken(raw string) (Token, error) {
	if len(raw) != tokenLen*2 {
		return [tokenLen]byte{}, ErrInvalidToken
	}

	b, err := hex.DecodeString(raw)
	if err != nil {
		return [tokenLen]byte{}, ErrInvalidToken
	}

	return [tokenLen]byte(b), nil
}

// String returns the string representation of the token. This is
// allowed because we need to embed tokens in emails and links.
func (t Token) String() string {
	return hex.EncodeToString(t[:])
}

// LogValue implements the slog.Valuer interface.
func (t Token) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}
