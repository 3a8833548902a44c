package main

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/krypto"
	"github.com/dlokwo/portfolio/internal/web"
)

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

// emailConfig selects and configures the outgoing email sender.
type emailConfig struct {
	// sender is either "log" or "postmark".
	sender        string
	from          email.Address
	sendTimeout   time.Duration
	postmarkURL   *url.URL
	postmarkTok   krypto.Secret
	messageStream string
}

// limitConfig holds the sliding window admission rules.
type limitConfig struct {
	post      web.RateRule
	contact   web.RateRule
	recommend web.RateRule

	// reissue bounds how often a confirmation token may be issued per
	// email address.
	reissueLimit  int
	reissueWindow time.Duration
}

// config is the configuration for the server command.
type config struct {
	http          httpConfig
	email         emailConfig
	limits        limitConfig
	dbFile        string
	baseURL       string
	adminEmail    email.Address
	csrfKey       krypto.Key
	sessionKey    krypto.Secret
	secureCookie  bool
	workerTimeout time.Duration
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	return config{
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
		},
		email: emailConfig{
			sender:        "log",
			sendTimeout:   time.Second * 10,
			messageStream: "outbound",
		},
		limits: limitConfig{
			post:          web.RateRule{Limit: 1, Window: 2 * time.Second},
			contact:       web.RateRule{Limit: 1, Window: 30 * time.Second},
			recommend:     web.RateRule{Limit: 1, Window: 30 * time.Second},
			reissueLimit:  2,
			reissueWindow: time.Hour,
		},
		dbFile:        "portfolio.db",
		baseURL:       "http://localhost:8888",
		secureCookie:  true,
		workerTimeout: time.Second * 30,
	}
}

// requiredEnv are variables without usable defaults, the server
// refuses to start when any of them is missing.
var requiredEnv = []string{
	"CSRF_KEY",
	"SESSION_KEY",
	"ADMIN_EMAIL",
	"EMAIL_FROM",
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"DB_FILE": func(v string, c *config) error {
		c.dbFile = v
		return nil
	},
	"BASE_URL": func(v string, c *config) error {
		u, err := url.Parse(v)
		if err != nil {
			return err
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base url must be http or https, got %q", v)
		}
		c.baseURL = v
		return nil
	},
	"ADMIN_EMAIL": func(v string, c *config) error {
		return confEmail(v, &c.adminEmail)
	},
	"CSRF_KEY": func(v string, c *config) error {
		key, err := krypto.ParseKey(v)
		if err != nil {
			return err
		}
		c.csrfKey = key
		return nil
	},
	"SESSION_KEY": func(v string, c *config) error {
		c.sessionKey = krypto.NewSecret(v)
		return nil
	},
	"SECURE_COOKIE": func(v string, c *config) error {
		return confBool(v, &c.secureCookie)
	},
	"WORKER_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.workerTimeout, time.Second, math.MaxInt64)
	},
	"EMAIL_SENDER": func(v string, c *config) error {
		if v != "log" && v != "postmark" {
			return fmt.Errorf("unknown email sender %q", v)
		}
		c.email.sender = v
		return nil
	},
	"EMAIL_FROM": func(v string, c *config) error {
		return confEmail(v, &c.email.from)
	},
	"EMAIL_SEND_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.email.sendTimeout, 0, math.MaxInt64)
	},
	"POSTMARK_API_URL": func(v string, c *config) error {
		u, err := url.Parse(v)
		if err != nil {
			return err
		}
		c.email.postmarkURL = u
		return nil
	},
	"POSTMARK_SERVER_TOKEN": func(v string, c *config) error {
		c.email.postmarkTok = krypto.NewSecret(v)
		return nil
	},
	"POSTMARK_MESSAGE_STREAM": func(v string, c *config) error {
		c.email.messageStream = v
		return nil
	},
	"RATE_POST_LIMIT": func(v string, c *config) error {
		return confInt(v, &c.limits.post.Limit, 1, math.MaxInt)
	},
	"RATE_POST_WINDOW": func(v string, c *config) error {
		return confDuration(v, &c.limits.post.Window, time.Millisecond, math.MaxInt64)
	},
	"RATE_CONTACT_LIMIT": func(v string, c *config) error {
		return confInt(v, &c.limits.contact.Limit, 1, math.MaxInt)
	},
	"RATE_CONTACT_WINDOW": func(v string, c *config) error {
		return confDuration(v, &c.limits.contact.Window, time.Millisecond, math.MaxInt64)
	},
	"RATE_RECOMMEND_LIMIT": func(v string, c *config) error {
		return confInt(v, &c.limits.recommend.Limit, 1, math.MaxInt)
	},
	"RATE_RECOMMEND_WINDOW": func(v string, c *config) error {
		return confDuration(v, &c.limits.recommend.Window, time.Millisecond, math.MaxInt64)
	},
	"RATE_REISSUE_LIMIT": func(v string, c *config) error {
		return confInt(v, &c.limits.reissueLimit, 1, math.MaxInt)
	},
	"RATE_REISSUE_WINDOW": func(v string, c *config) error {
		return confDuration(v, &c.limits.reissueWindow, time.Millisecond, math.MaxInt64)
	},
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing environment variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. However, there is no guarantee that the returned config
// is valid and will work.
func configFromEnv() (config, error) {
	c := defaultConfig()

	for _, key := range requiredEnv {
		if _, ok := os.LookupEnv(key); !ok {
			return c, fmt.Errorf("missing required env variable %s", key)
		}
	}

	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				return c, fmt.Errorf("invalid env variable %s: %w", key, err)
			}
		}
	}

	if c.email.sender == "postmark" && c.email.postmarkURL == nil {
		return c, fmt.Errorf("POSTMARK_API_URL is required for the postmark sender")
	}

	return c, nil
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

func confInt(v string, tgt *int, min, max int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}

	if n < min || n > max {
		return fmt.Errorf("value %d not in range [%d, %d] (inclusive)", n, min, max)
	}

	*tgt = n

	return nil
}

func confBool(v string, tgt *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*tgt = b

	return nil
}

func confEmail(v string, tgt *email.Address) error {
	addr, err := email.ParseAddress(v)
	if err != nil {
		return err
	}

	*tgt = addr.Normalize()

	return nil
}
