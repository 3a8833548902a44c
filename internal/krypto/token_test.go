package krypto_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dlokwo/portfolio/internal/krypto"
)

func Test_GenerateToken(t *testing.T) {
	t.Run("ok, tokens are unique", func(t *testing.T) {
		t1, err := krypto.GenerateToken()
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		t2, err := krypto.GenerateToken()
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		if t1 == t2 {
			t.Fatalf("expected two generated tokens to differ")
		}
	})

	t.Run("ok, round trip via string", func(t *testing.T) {
		tok, err := krypto.GenerateToken()
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		got, err := krypto.ParseToken(tok.String())
		if err != nil {
			t.Fatalf("failed to parse token: %v", err)
		}

		if got != tok {
			t.Fatalf("got token %v, want %v", got, tok)
		}
	})
}

func Test_ParseToken(t *testing.T) {
	invalid := []string{
		"",
		"abc",
		"e3b54bb8b425c9e2a20a7154f1a8b00",    // too short.
		"e3b54bb8b425c9e2a20a7154f1a8b002aa", // too long.
		"g3b54bb8b425c9e2a20a7154f1a8b002",   // not hex.
		"E3B54BB8B425C9E2A20A7154F1A8B00",    // upper cased and too short.
	}

	for i, raw := range invalid {
		t.Run(fmt.Sprintf("fail %d", i), func(t *testing.T) {
			_, err := krypto.ParseToken(raw)
			if !errors.Is(err, krypto.ErrInvalidToken) {
				t.Fatalf("expected error %v, got %v", krypto.ErrInvalidToken, err)
			}
		})
	}
}

func Test_Token_LogValue(t *testing.T) {
	tok, err := krypto.GenerateToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if got := tok.LogValue().String(); got != krypto.SecretMarker {
		t.Fatalf("expected log value to be redacted, got %q", got)
	}
}
