package domain

import "time"

// EventKind classifies an inbound event from the channel.
type EventKind int

const (
	EventText EventKind = iota
	EventChoice
	EventPhoto
	EventClip
	EventStart
	EventCancel
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventChoice:
		return "choice"
	case EventPhoto:
		return "photo"
	case EventClip:
		return "clip"
	case EventStart:
		return "start"
	case EventCancel:
		return "cancel"
	}
	return "unknown"
}

// Event is a single user action delivered by the channel.
type Event struct {
	Kind      EventKind
	UserID    int64
	ChatID    int64
	Text      string // text payload (EventText)
	Data      string // button data (EventChoice)
	FileID    string // attachment reference (EventPhoto, EventClip)
	Timestamp time.Time
}

// Button is one inline choice offered alongside a reply.
type Button struct {
	Label string
	Data  string
}

// Reply is an outbound message to the user's own chat. Delivery of
// replies is not confirmed; the channel logs failures and moves on.
type Reply struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
}
