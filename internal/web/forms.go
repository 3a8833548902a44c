package web

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/schema"

	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/errorz"
)

// honeypotField is a hidden form field on every public form. Humans
// never see it, bots that blindly fill every input do. A non-empty
// value is treated as conclusive spam.
const honeypotField = "website"

type contactForm struct {
	Name       string
	Email      email.Address
	Body       string
	Attachment string
}

type recommendForm struct {
	Name    string
	Role    string
	Email   email.Address
	Content string
}

type subscribeForm struct {
	Email    email.Address
	Redirect string
}

// decodeForm maps the request form onto dst. The CSRF token and the
// honeypot field are stripped first, neither maps to a target field.
func (s *Server) decodeForm(r *http.Request, dst any) error {
	err := r.ParseForm()
	if err != nil {
		return err
	}

	r.Form.Del(csrfTokenField)
	r.Form.Del(honeypotField)

	return decodeError(s.decoder.Decode(dst, r.Form))
}

// decodeError converts schema decoding failures into the same keyed
// validation errors the services produce, so handlers and views only
// deal with one shape.
func decodeError(err error) error {
	if err == nil {
		return nil
	}

	var multiErr schema.MultiError
	if errors.As(err, &multiErr) {
		var invalidInput errorz.InvalidInput
		for key, e := range multiErr {
			invalidInput = append(invalidInput, errorz.Keyed{
				Key: key,
				Err: e,
			})
		}

		return invalidInput
	}

	return err
}

// clientIP returns the remote address without the port. Rate limit
// keys are derived from it.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// localTarget allow-lists redirect targets to local paths. Anything
// that could leave the site falls back to the site root.
func localTarget(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return "/"
	}
	if strings.HasPrefix(target, "//") || strings.ContainsAny(target, "\\\n\r") {
		return "/"
	}
	return target
}
