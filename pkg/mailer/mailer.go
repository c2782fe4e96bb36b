package mailer

import "context"

// Message is a single outgoing plain-text email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	Body      string
}

// Mailer sends email messages. Send returns an error when any message in
// the batch could not be delivered; already-delivered messages are not
// retracted.
type Mailer interface {
	Send(ctx context.Context, messages ...Message) error
}
