package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/krypto"
	"github.com/dlokwo/portfolio/internal/web"
)

func requiredEnvForTest() map[string]string {
	return map[string]string{
		"CSRF_KEY":    "dfab77e26917c6e37a173690443a0016808ef7b24e32424d45cd83454198a6ec",
		"SESSION_KEY": "test-session-key",
		"ADMIN_EMAIL": "admin@example.com",
		"EMAIL_FROM":  "noreply@example.com",
	}
}

func newConfig(mf func(*config)) config {
	c := defaultConfig()
	c.csrfKey = must(krypto.ParseKey("dfab77e26917c6e37a173690443a0016808ef7b24e32424d45cd83454198a6ec"))
	c.sessionKey = krypto.NewSecret("test-session-key")
	c.adminEmail = must(email.ParseAddress("admin@example.com"))
	c.email.from = must(email.ParseAddress("noreply@example.com"))

	if mf != nil {
		mf(&c)
	}
	return c
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("ok, uses defaults for non-required env variables", func(t *testing.T) {
		for key, val := range requiredEnvForTest() {
			t.Setenv(key, val)
		}

		want := newConfig(nil)
		got, err := configFromEnv()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !reflect.DeepEqual(got, want) {
			t.Errorf("got\n%+v\nwant\n%+v", got, want)
		}
	})

	t.Run("ok, overrides defaults from the environment", func(t *testing.T) {
		for key, val := range requiredEnvForTest() {
			t.Setenv(key, val)
		}
		t.Setenv("HTTP_ADDR", ":9999")
		t.Setenv("DB_FILE", "other.db")
		t.Setenv("BASE_URL", "https://example.com")
		t.Setenv("SECURE_COOKIE", "false")
		t.Setenv("RATE_POST_LIMIT", "5")
		t.Setenv("RATE_POST_WINDOW", "10s")
		t.Setenv("RATE_REISSUE_LIMIT", "3")
		t.Setenv("EMAIL_SEND_TIMEOUT", "30s")

		want := newConfig(func(c *config) {
			c.http.addr = ":9999"
			c.dbFile = "other.db"
			c.baseURL = "https://example.com"
			c.secureCookie = false
			c.limits.post = web.RateRule{Limit: 5, Window: 10 * time.Second}
			c.limits.reissueLimit = 3
			c.email.sendTimeout = 30 * time.Second
		})

		got, err := configFromEnv()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !reflect.DeepEqual(got, want) {
			t.Errorf("got\n%+v\nwant\n%+v", got, want)
		}
	})

	t.Run("fail, missing required env variable", func(t *testing.T) {
		env := requiredEnvForTest()
		delete(env, "CSRF_KEY")
		for key, val := range env {
			t.Setenv(key, val)
		}

		_, err := configFromEnv()
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
	})

	failTests := map[string]struct {
		key string
		val string
	}{
		"negative timeout":      {"HTTP_READ_TIMEOUT", "-1ms"},
		"malformed duration":    {"HTTP_READ_TIMEOUT", "not-a-duration"},
		"short csrf key":        {"CSRF_KEY", "abcd"},
		"malformed admin email": {"ADMIN_EMAIL", "not-an-email"},
		"unknown email sender":  {"EMAIL_SENDER", "carrier-pigeon"},
		"zero rate limit":       {"RATE_POST_LIMIT", "0"},
		"scheme-less base url":  {"BASE_URL", "example.com"},
		"malformed secure flag": {"SECURE_COOKIE", "yes please"},
	}

	for name, tc := range failTests {
		t.Run("fail, "+name, func(t *testing.T) {
			for key, val := range requiredEnvForTest() {
				t.Setenv(key, val)
			}
			t.Setenv(tc.key, tc.val)

			_, err := configFromEnv()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}

	t.Run("fail, postmark sender without api url", func(t *testing.T) {
		for key, val := range requiredEnvForTest() {
			t.Setenv(key, val)
		}
		t.Setenv("EMAIL_SENDER", "postmark")

		_, err := configFromEnv()
		if err == nil {
			t.Fatalf("expected error, got nil")
		}
	})
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
