package output

import (
	"context"
	"fmt"
)

// Message is an outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages. Delivery failures are reported as *DeliveryError.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError reports a failed notification. It is never fatal for the
// operation that triggered the notification.
type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Translator renders a localized template identified by key. Unknown keys
// render as the key itself, so a missing translation never blocks a message.
type Translator interface {
	T(locale, key string, data map[string]any) string
}
