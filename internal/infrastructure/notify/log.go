package notify

import (
	"context"
	"log"

	"trainingreg/internal/ports/output"
)

var _ output.Notifier = LogNotifier{}

// LogNotifier writes messages to the process log. It is used when no mail
// relay is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, msg output.Message) error {
	log.Printf("📧 To: %s | %s\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}
