// Package inbox handles unauthenticated public submissions, contact
// messages and testimonial recommendations.
package inbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/dlokwo/portfolio/internal/email"
)

// Message is a contact message submitted through the public contact form.
type Message struct {
	ID    uuid.UUID
	Name  string
	Email email.Address
	Body  string
	// Attachment is an optional reference to an uploaded file, empty
	// when the submission had no attachment.
	Attachment string
	// Processed marks messages that have been handled, new messages
	// start out unprocessed.
	Processed  bool
	ReceivedAt time.Time
}

// Recommendation is a testimonial submitted through the public form.
// Recommendations enter unmoderated, Featured stays false until someone
// reviews them.
type Recommendation struct {
	ID         uuid.UUID
	Name       string
	Role       string
	Email      email.Address
	Content    string
	Featured   bool
	ReceivedAt time.Time
}
