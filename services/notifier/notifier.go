package notifier

import "context"

// Notifier delivers a text message to the configured chat
type Notifier interface {
	// Send delivers text; any error must be treated as fatal by the caller
	Send(ctx context.Context, text string) error
}
