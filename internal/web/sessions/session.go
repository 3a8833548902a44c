// Package sessions wraps gorilla/sessions with the small surface the
// site actually needs: cookie sessions carrying flash messages.
package sessions

import (
	"github.com/gorilla/sessions"
)

type Session struct {
	base *sessions.Session
}

// AddFlash queues a one-time message to show on the next rendered page.
func (s *Session) AddFlash(flash any, vars ...string) {
	s.base.AddFlash(flash, vars...)
}

// Flashes returns and clears the queued messages. The session must be
// saved afterwards for the clear to stick.
func (s *Session) Flashes() []any {
	return s.base.Flashes()
}
