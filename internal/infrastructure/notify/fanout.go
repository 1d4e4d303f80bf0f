package notify

import (
	"context"
	"errors"

	"trainingreg/internal/ports/output"
)

var _ output.Notifier = Fanout(nil)

// Fanout sends every message through each notifier in turn. All notifiers
// are tried; their errors are joined.
type Fanout []output.Notifier

func (f Fanout) Send(ctx context.Context, msg output.Message) error {
	var errs []error
	for _, n := range f {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
