package dispatch

import (
	"context"

	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// LogMailbox is a Mailbox that records requested operations without
// touching a real mail store. It stands in until a provider adapter is
// wired up, and serves as the default sink set for the binaries.
type LogMailbox struct {
	logger *zap.Logger
}

// NewLogMailbox creates a log-only Mailbox.
func NewLogMailbox(logger *zap.Logger) *LogMailbox {
	return &LogMailbox{logger: logger}
}

func (m *LogMailbox) log(op string, msg *core.Message, fields ...zap.Field) {
	fields = append(fields,
		zap.String("op", op),
		zap.String("external_id", msg.ExternalID),
		zap.String("subject", msg.Subject))
	m.logger.Info("Mailbox operation", fields...)
}

func (m *LogMailbox) Route(ctx context.Context, msg *core.Message, folder string) error {
	m.log("route", msg, zap.String("folder", folder))
	return nil
}

func (m *LogMailbox) Tag(ctx context.Context, msg *core.Message, label string) error {
	m.log("tag", msg, zap.String("label", label))
	return nil
}

func (m *LogMailbox) SetPriority(ctx context.Context, msg *core.Message, level string) error {
	m.log("priority", msg, zap.String("level", level))
	return nil
}

func (m *LogMailbox) Forward(ctx context.Context, msg *core.Message, to string) error {
	m.log("forward", msg, zap.String("to", to))
	return nil
}

func (m *LogMailbox) Archive(ctx context.Context, msg *core.Message) error {
	m.log("archive", msg)
	return nil
}

func (m *LogMailbox) Delete(ctx context.Context, msg *core.Message) error {
	m.log("delete", msg)
	return nil
}

func (m *LogMailbox) MarkRead(ctx context.Context, msg *core.Message, read bool) error {
	m.log("mark_read", msg, zap.Bool("read", read))
	return nil
}

func (m *LogMailbox) Star(ctx context.Context, msg *core.Message) error {
	m.log("star", msg)
	return nil
}

func (m *LogMailbox) Snooze(ctx context.Context, msg *core.Message, until string) error {
	m.log("snooze", msg, zap.String("until", until))
	return nil
}

func (m *LogMailbox) MarkSpam(ctx context.Context, msg *core.Message) error {
	m.log("mark_as_spam", msg)
	return nil
}

// LogNotifier is a Notifier that only logs.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only Notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg *core.Message, channel string) error {
	n.logger.Info("Notification",
		zap.String("channel", channel),
		zap.String("external_id", msg.ExternalID),
		zap.String("subject", msg.Subject))
	return nil
}

// LogTaskTracker is a TaskTracker that only logs.
type LogTaskTracker struct {
	logger *zap.Logger
}

// NewLogTaskTracker creates a log-only TaskTracker.
func NewLogTaskTracker(logger *zap.Logger) *LogTaskTracker {
	return &LogTaskTracker{logger: logger}
}

func (t *LogTaskTracker) CreateTask(ctx context.Context, msg *core.Message) error {
	t.logger.Info("Task created",
		zap.String("external_id", msg.ExternalID),
		zap.String("subject", msg.Subject))
	return nil
}

// LogSenderList is a SenderList that only logs.
type LogSenderList struct {
	logger *zap.Logger
}

// NewLogSenderList creates a log-only SenderList.
func NewLogSenderList(logger *zap.Logger) *LogSenderList {
	return &LogSenderList{logger: logger}
}

func (s *LogSenderList) Block(ctx context.Context, sender string) error {
	s.logger.Info("Sender blocked", zap.String("sender", sender))
	return nil
}

func (s *LogSenderList) Whitelist(ctx context.Context, sender string) error {
	s.logger.Info("Sender whitelisted", zap.String("sender", sender))
	return nil
}
