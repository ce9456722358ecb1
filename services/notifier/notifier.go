package notifier

import "context"

// Notifier delivers alert notifications. Delivery is at-least-once from the
// caller's perspective; the alert evaluator guarantees it is invoked at most
// once per alert.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, body string) error
}
