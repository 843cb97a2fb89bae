package domain

// MessageBus decouples the Telegram channel from the wizard controller:
// the channel publishes inbound events, the controller sends replies.
type MessageBus interface {
	Publish(ev Event)
	Subscribe() <-chan Event
	SendReply(r Reply)
	OnReply(handler func(Reply))
}
