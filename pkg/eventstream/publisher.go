package eventstream

import "context"

// Publisher publishes conversation events to an event stream backend.
type Publisher interface {
	PublishMessage(ctx context.Context, event *MessageReceivedEvent) error
	PublishConversation(ctx context.Context, event *ConversationEndedEvent) error
	Close() error
}
