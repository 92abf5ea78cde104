package mailer

import "context"

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	HTML    []byte
}

// Sender defines the interface for delivering invoice emails.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg *Message) error
}
