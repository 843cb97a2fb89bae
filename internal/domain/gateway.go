package domain

import "context"

// DeliveryGateway sends a finished post and its media to the target
// chat, one item per call. Sends are not transactional: a fault aborts
// the remaining items without rolling back the ones already delivered.
type DeliveryGateway interface {
	SendPost(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, fileID string) error
	SendClip(ctx context.Context, chatID int64, fileID string) error
}

// DeliveryError is a structured gateway fault. Recoverable marks
// format-level rejections (bad markup, unknown file reference) that the
// user can fix and retry, as opposed to transport failures.
type DeliveryError struct {
	Recoverable bool
	Detail      string
}

func (e *DeliveryError) Error() string { return e.Detail }
