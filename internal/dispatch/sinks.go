package dispatch

import (
	"context"

	"github.com/mikey/mail-triage/internal/core"
)

// Mailbox performs folder and message-state operations on the mail store
// that holds the message. Implementations talk to the provider's API; the
// log-only implementation in this package just records what would happen.
type Mailbox interface {
	Route(ctx context.Context, msg *core.Message, folder string) error
	Tag(ctx context.Context, msg *core.Message, label string) error
	SetPriority(ctx context.Context, msg *core.Message, level string) error
	Forward(ctx context.Context, msg *core.Message, to string) error
	Archive(ctx context.Context, msg *core.Message) error
	Delete(ctx context.Context, msg *core.Message) error
	MarkRead(ctx context.Context, msg *core.Message, read bool) error
	Star(ctx context.Context, msg *core.Message) error
	Snooze(ctx context.Context, msg *core.Message, until string) error
	MarkSpam(ctx context.Context, msg *core.Message) error
}

// Notifier delivers out-of-band alerts about a message.
type Notifier interface {
	Notify(ctx context.Context, msg *core.Message, channel string) error
}

// TaskTracker creates follow-up tasks from messages.
type TaskTracker interface {
	CreateTask(ctx context.Context, msg *core.Message) error
}

// SenderList maintains the block and whitelist sender sets.
type SenderList interface {
	Block(ctx context.Context, sender string) error
	Whitelist(ctx context.Context, sender string) error
}
