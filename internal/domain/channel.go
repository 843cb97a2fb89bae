package domain

import "context"

// Channel is the user-facing transport.
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}
