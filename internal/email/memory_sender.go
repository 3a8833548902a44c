package email

import (
	"context"
	"sync"
)

// MemoryEmail is an email captured by a MemorySender.
type MemoryEmail struct {
	From      Address
	Recipient Address
	Subject   string
	Body      string
}

// MemorySender is a Sender that stores emails in memory. It's used in
// tests to assert on sent emails. Services send from worker goroutines,
// so access is guarded by a mutex.
type MemorySender struct {
	mutex  sync.Mutex
	emails []MemoryEmail
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, from, recipient Address, subject, body string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.emails = append(s.emails, MemoryEmail{
		From:      from,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
	})
	return nil
}

// Emails returns a copy of all captured emails.
func (s *MemorySender) Emails() []MemoryEmail {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make([]MemoryEmail, len(s.emails))
	copy(out, s.emails)
	return out
}
